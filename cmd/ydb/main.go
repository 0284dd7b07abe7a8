// Command ydb reads and writes an M database from the shell.
//
//	ydb --config ydb.yaml set ^x a 1 hello
//	ydb get ^x a 1
//	ydb dump ^x
//	ydb call '$$add^math' 2 3
//	ydb shell
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

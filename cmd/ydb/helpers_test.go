package main

import (
	"os"
	"testing"
)

func writeConfig(t *testing.T, path, gbldir string) {
	t.Helper()
	data := "engine: local\n" +
		"global_directory: " + gbldir + "\n" +
		"signals:\n  ignore: [SIGINT, SIGQUIT, SIGTERM]\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

package runtime

import "context"

// Data reports whether a node has a value (1), descendants (10), both (11) or
// neither (0), in Envelope.Defined.
func (s *Session) Data(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpData, opts)
}

// Get returns a node's value in Envelope.Data. An undefined node is not a
// failure: Data is "" and Defined is false.
func (s *Session) Get(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpGet, opts)
}

func (s *Session) Set(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpSet, opts)
}

// Kill removes a node and its descendants, or only its value when NodeOnly is
// set. Without a name it removes every local variable.
func (s *Session) Kill(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpKill, opts)
}

// Order returns the next subscript at the level of the last subscript in
// Envelope.Result. With no subscripts it returns the next variable name.
func (s *Session) Order(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpOrder, opts)
}

func (s *Session) Previous(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpPrevious, opts)
}

// NextNode returns the next node holding data, depth first.
func (s *Session) NextNode(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpNextNode, opts)
}

func (s *Session) PreviousNode(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpPreviousNode, opts)
}

// Increment adds opts.Increment (default 1) to a node and returns the new
// value in Envelope.Data.
func (s *Session) Increment(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpIncrement, opts)
}

// Lock takes an incremental lock. Envelope.Result is false when the timeout
// expired first.
func (s *Session) Lock(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpLock, opts)
}

// Unlock drops one level of a lock. Without a name it releases every lock the
// engine holds for this process.
func (s *Session) Unlock(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpUnlock, opts)
}

// Merge copies opts.From and its descendants under opts.To.
func (s *Session) Merge(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpMerge, opts)
}

func (s *Session) Function(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpFunction, opts)
}

func (s *Session) Procedure(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpProcedure, opts)
}

// GlobalDirectory lists global names, bounded by opts.Max, Lo and Hi.
func (s *Session) GlobalDirectory(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpGlobalDirectory, opts)
}

func (s *Session) LocalDirectory(ctx context.Context, opts Options) (*Envelope, error) {
	return s.Do(ctx, OpLocalDirectory, opts)
}

// Version returns the engine's version string.
func (s *Session) Version(ctx context.Context) (string, error) {
	v, err := s.Call(ctx, OpVersion, "")
	if err != nil {
		return "", err
	}
	text, _ := v.(string)
	return text, nil
}

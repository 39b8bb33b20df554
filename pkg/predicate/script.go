package predicate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// ErrScript wraps every failure of a script predicate.
var ErrScript = errors.New("predicate: script failed")

// ScriptTimeout is the default hard limit for evaluating one label.
const ScriptTimeout = 5 * time.Second

// scriptMemoLimit caps the number of memoized labels; the memo is cleared
// when it fills.
const scriptMemoLimit = 1 << 16

// ScriptOption configures a Script.
type ScriptOption func(*Script)

// WithAssignment exposes (segment-of fragment) to the script.
func WithAssignment(a *Assignment) ScriptOption {
	return func(s *Script) { s.assignment = a }
}

// WithTimeout overrides ScriptTimeout.
func WithTimeout(d time.Duration) ScriptOption {
	return func(s *Script) { s.timeout = d }
}

// Script is a predicate written in zygomys Lisp. The label under test is
// bound to the symbol label; the value of the last expression decides the
// result, for example
//
//	(or (== label 3) (and (>= label 100) (< label 200)))
//
// Each distinct label is evaluated once in a fresh sandbox and the outcome
// memoized, so a block costs one evaluation per label it contains rather
// than one per voxel. Script is safe for concurrent use.
//
// Evaluations that time out or panic are not memoized. A timed-out
// evaluation cannot be interrupted: its goroutine keeps running until the
// script returns, and never returns for a script that loops forever.
type Script struct {
	source     string
	assignment *Assignment
	timeout    time.Duration

	// evalHook runs in the sandbox before the program is loaded.
	evalHook func(env *zygo.Zlisp, label uint64)

	mu        sync.Mutex
	memo      map[uint64]scriptResult
	memoLimit int
}

// scriptResult passes evaluation outcomes through channels and the memo.
type scriptResult struct {
	foreground bool
	err        error
	panicked   bool
}

// NewScript compiles source once to report syntax errors early.
func NewScript(source string, opts ...ScriptOption) (*Script, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty source", ErrScript)
	}
	s := &Script{
		source:  preprocessSource(source),
		timeout:   ScriptTimeout,
		memo:      make(map[uint64]scriptResult),
		memoLimit: scriptMemoLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()
	s.registerBuiltins(env)
	if err := env.LoadString(s.program(0)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrScript, describeError(err))
	}
	return s, nil
}

// Source returns the preprocessed script source.
func (s *Script) Source() string {
	return s.source
}

// Test evaluates the script for label.
func (s *Script) Test(label uint64) (bool, error) {
	s.mu.Lock()
	res, ok := s.memo[label]
	s.mu.Unlock()
	if ok {
		return res.foreground, res.err
	}

	ch := make(chan scriptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- scriptResult{err: fmt.Errorf("%w: panic during evaluation: %v", ErrScript, r), panicked: true}
			}
		}()
		fg, err := s.evaluate(label)
		ch <- scriptResult{foreground: fg, err: err}
	}()

	res, err := waitWithTimeout(ch, s.timeout)
	if err != nil {
		return false, err
	}
	if !res.panicked {
		s.remember(label, res)
	}
	return res.foreground, res.err
}

func (s *Script) remember(label uint64, res scriptResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.memo) >= s.memoLimit {
		clear(s.memo)
	}
	s.memo[label] = res
}

// program prepends the label binding to the script. Labels above
// math.MaxInt64 appear negative to the script.
func (s *Script) program(label uint64) string {
	return fmt.Sprintf("(def label %d)\n%s", int64(label), s.source)
}

// evaluate runs the script in a fresh sandbox; sandbox mode denies the
// filesystem and syscalls.
func (s *Script) evaluate(label uint64) (bool, error) {
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	s.registerBuiltins(env)
	if s.evalHook != nil {
		s.evalHook(env, label)
	}

	if err := env.LoadString(s.program(label)); err != nil {
		return false, fmt.Errorf("%w: label %d: %s", ErrScript, label, describeError(err))
	}
	out, err := env.Run()
	if err != nil {
		return false, fmt.Errorf("%w: label %d: %s", ErrScript, label, describeError(err))
	}
	return truth(out, label)
}

func (s *Script) registerBuiltins(env *zygo.Zlisp) {
	// (segment-of fragment)
	env.AddFunction("segment_of", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("segment-of: expected 1 argument, got %d", len(args))
		}
		v, ok := args[0].(*zygo.SexpInt)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("segment-of: expected integer, got %T", args[0])
		}
		if s.assignment == nil {
			return v, nil
		}
		return &zygo.SexpInt{Val: int64(s.assignment.SegmentOf(uint64(v.Val)))}, nil
	})
}

// truth converts the script's final value to a classification. Booleans
// are taken as is; integers are foreground when non-zero.
func truth(out zygo.Sexp, label uint64) (bool, error) {
	switch v := out.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpInt:
		return v.Val != 0, nil
	}
	if out == zygo.SexpNull {
		return false, nil
	}
	return false, fmt.Errorf("%w: label %d: result %T is not a boolean", ErrScript, label, out)
}

// waitWithTimeout waits for a result from ch, but returns a timeout error if
// the evaluation exceeds timeout. On timeout the evaluating goroutine is
// leaked until it finishes; ch is buffered so its final send never blocks.
func waitWithTimeout(ch <-chan scriptResult, timeout time.Duration) (scriptResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		return scriptResult{}, fmt.Errorf("%w: evaluation timed out after %s", ErrScript, timeout)
	}
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// describeError formats a zygomys error, shifting line numbers to account
// for the prepended label binding.
func describeError(err error) string {
	msg := err.Error()
	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		if line > 1 {
			line--
		}
		return fmt.Sprintf("line %d: %s", line, strings.TrimSpace(m[2]))
	}
	return strings.TrimSpace(msg)
}

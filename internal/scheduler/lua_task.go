package scheduler

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// LuaTask compiles a user-supplied Lua script into a TaskFunc, grounded on
// the reference pack's workflow engine executeLuaScript: fresh *lua.LState per
// run, a timeout race via goroutine+recover, and a "log" global bridged to
// the scheduler's own logger. Intended for operator-defined tasks (e.g. a
// custom admin-list refresh) that don't warrant a native TaskFunc.
func LuaTask(script string, timeout time.Duration, onLog func(string)) TaskFunc {
	return func(ctx context.Context) error {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		L := lua.NewState()
		defer L.Close()

		if onLog != nil {
			L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
				onLog(L.ToString(1))
				return 0
			}))
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("lua task panicked: %v", r)
				}
			}()
			done <- L.DoString(script)
		}()

		select {
		case err := <-done:
			return err
		case <-runCtx.Done():
			return fmt.Errorf("lua task: %w", runCtx.Err())
		}
	}
}

// Tideland Go Library - Redis Client
//
// Copyright (C) 2017-2026 Frank Mueller / Tideland / Oldenburg / Germany
//
// All rights reserved. Use of this source code is governed
// by the new BSD license.

package redis // import "tideland.dev/go/redis"

//--------------------
// IMPORTS
//--------------------

import (
	"fmt"
	"strings"

	"tideland.dev/go/trace/failure"
	"tideland.dev/go/trace/logger"
)

//--------------------
// TOOLS
//--------------------

// containsPattern reports whether a channel name looks like a glob
// pattern, so Subscribe-family callers can decide SUBSCRIBE vs
// PSUBSCRIBE.
func containsPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// formatModifiers renders a command's modifiers for a log line with
// %v, without going through the wire encoder.
func formatModifiers(modifiers []Encodable) string {
	if len(modifiers) == 0 {
		return "(none)"
	}
	parts := make([]string, len(modifiers))
	for i, m := range modifiers {
		parts[i] = fmt.Sprintf("%v", m)
	}
	return strings.Join(parts, " / ")
}

// logCommand logs one command's outcome the way the teacher's
// logCommand does: failures are always logged (except the noisy,
// already-surfaced-to-the-caller server error and timeout cases),
// successes only when cfg.Logging asked for them.
func logCommand(verb string, modifiers []Encodable, err error, verbose bool) {
	line := func() string {
		if err == nil {
			return fmt.Sprintf("CMD %s ARGS %s OK", verb, formatModifiers(modifiers))
		}
		return fmt.Sprintf("CMD %s ARGS %s ERROR %s", verb, formatModifiers(modifiers), err.Error())
	}
	if err != nil {
		if failure.Contains(err, "server responded error") || failure.Contains(err, "timeout") {
			return
		}
		if _, ok := err.(*ResponseError); ok {
			return
		}
		logger.Errorf(line())
		return
	}
	if verbose {
		logger.Infof(line())
	}
}

// EOF

// Package transition extracts the control directive an LLM response or
// script stdout uses to steer its owning agent.
package transition

import (
	"regexp"
	"strings"
)

// Kind discriminates the five recognized tags plus the no-match sentinel.
type Kind string

const (
	KindNone   Kind = "none"
	KindGoto   Kind = "goto"
	KindReset  Kind = "reset"
	KindCall   Kind = "call"
	KindFork   Kind = "fork"
	KindResult Kind = "result"
)

// Transition is the directive a step yields for the agent that emitted
// it. Only the fields relevant to Kind are populated: File for
// goto/reset/call, Body for result.
type Transition struct {
	Kind Kind
	File string
	Body string
}

// Fork is one <fork>FILE</fork>[<id>NAME</id>] directive. A single
// response may contain several; each spawns an independent child.
type Fork struct {
	File string
	ID   string
}

// NoTransition is the sentinel returned when no recognized non-fork
// tag is found.
var NoTransition = Transition{Kind: KindNone}

var (
	// One alternative per tag, so each opening tag pairs only with its
	// own closing tag (RE2 has no backreferences).
	tagPattern   = regexp.MustCompile(`(?is)<(goto)>(.*?)</\s*goto\s*>|<(reset)>(.*?)</\s*reset\s*>|<(call)>(.*?)</\s*call\s*>|<(fork)>(.*?)</\s*fork\s*>|<(result)>(.*?)</\s*result\s*>`)
	idTagPattern = regexp.MustCompile(`(?is)<id>(.*?)</id>`)
)

// findTags returns every tagPattern match as [start, end, nameStart,
// nameEnd, payloadStart, payloadEnd], whichever alternative matched.
func findTags(body string) [][]int {
	var out [][]int
	for _, m := range tagPattern.FindAllStringSubmatchIndex(body, -1) {
		for g := 2; g < len(m); g += 4 {
			if m[g] >= 0 {
				out = append(out, []int{m[0], m[1], m[g], m[g+1], m[g+2], m[g+3]})
				break
			}
		}
	}
	return out
}

// Parse returns the last well-formed goto/reset/call/result tag found
// in body, or NoTransition if none is found. <fork> tags never satisfy
// Parse by themselves — a fork-only response (no accompanying
// goto/reset/call/result) resolves to NoTransition for the parent, so
// the scheduler retries it like any other authoring error; use
// ParseForks to discover the forks themselves, which are independent
// of the parent's own transition.
//
// Tags are matched case-insensitively; payloads are trimmed. When
// multiple qualifying tags appear, the last one in textual order wins.
func Parse(body string) Transition {
	matches := findTags(body)

	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		kind := Kind(strings.ToLower(body[m[2]:m[3]]))
		if kind == KindFork {
			continue
		}
		payload := strings.TrimSpace(body[m[4]:m[5]])
		t := Transition{Kind: kind}
		if kind == KindResult {
			t.Body = payload
		} else {
			t.File = payload
		}
		return t
	}

	return NoTransition
}

// ParseForks returns every <fork> directive in body, in textual order,
// each paired with its nearest trailing <id> tag if one immediately
// follows (before any other control tag).
func ParseForks(body string) []Fork {
	matches := findTags(body)

	var forks []Fork
	for _, m := range matches {
		kind := Kind(strings.ToLower(body[m[2]:m[3]]))
		if kind != KindFork {
			continue
		}
		file := strings.TrimSpace(body[m[4]:m[5]])
		forks = append(forks, Fork{File: file, ID: findTrailingID(body, m[1])})
	}
	return forks
}

// findTrailingID looks for an <id>...</id> tag starting at or after
// offset searchFrom, stopping as soon as any other recognized control
// tag is encountered first.
func findTrailingID(body string, searchFrom int) string {
	rest := body[searchFrom:]

	idLoc := idTagPattern.FindStringSubmatchIndex(rest)
	if idLoc == nil {
		return ""
	}

	if nextTag := tagPattern.FindStringIndex(rest); nextTag != nil && nextTag[0] < idLoc[0] {
		return ""
	}

	return strings.TrimSpace(rest[idLoc[2]:idLoc[3]])
}

// Package recitation follows a reciter through the mushaf.
//
// A [Session] receives the running speech recognizer hypothesis. Until it is
// anchored it asks the [Locator] which verse line the reciter started on:
// first by prefix containment over the normalized corpus, then, after a quiet
// period, by an optional classifier and an exhaustive similarity scan. Once
// anchored, each new transcript word is aligned against the reference words
// that follow the anchor, tolerating repeated and dropped words, and the
// result is laid out on mushaf pages by a [PageAssembler].
//
// Both timers of a session (fallback search and look-ahead preview) are
// [Debouncer] handles. A reset bumps the session generation so that a timer
// or search already in flight has no effect.
package recitation

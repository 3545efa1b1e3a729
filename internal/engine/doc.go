// Package engine executes evolution runs. It turns experiment documents into
// persisted runs, executes them on the resolved backend under a deadline,
// records progress events and final results in the store, and streams the
// events to live subscribers.
package engine

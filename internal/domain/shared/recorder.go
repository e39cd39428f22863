package shared

// Recorder tracks the events an aggregate has raised but not yet persisted,
// together with the fold count. It is held by value inside each aggregate
// instead of a raise/clear capability mixin; the aggregate calls Record for
// new facts and Applied while folding history.
type Recorder struct {
	uncommitted []Event
	version     int
}

// Record buffers a newly raised event and counts it into the version.
// The caller is expected to apply the event to its own state first.
func (r *Recorder) Record(event Event) {
	r.uncommitted = append(r.uncommitted, event)
	r.version++
}

// Applied counts a historical event folded during rehydration.
func (r *Recorder) Applied() {
	r.version++
}

// Uncommitted returns the raised-but-unpersisted events in raise order.
func (r *Recorder) Uncommitted() []Event {
	return r.uncommitted
}

// Drain returns the buffered events and clears the buffer. The version is
// untouched: drained events are on their way to the store.
func (r *Recorder) Drain() []Event {
	events := r.uncommitted
	r.uncommitted = nil
	return events
}

// Clear drops the buffer without returning it.
func (r *Recorder) Clear() {
	r.uncommitted = nil
}

// Version returns the fold count: persisted events plus uncommitted ones.
func (r *Recorder) Version() int {
	return r.version
}

// LoadedVersion returns the stream version at which the aggregate was
// loaded. Command handlers pass this as expectedVersion to Append.
func (r *Recorder) LoadedVersion() int {
	return r.version - len(r.uncommitted)
}

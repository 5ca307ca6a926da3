package stamina

// Testing is the testing mode of a [Cell].
//
// While it's enabled, retry engines must cap attempts to Attempts and skip backoff entirely.
type Testing struct {
	Attempts int
}

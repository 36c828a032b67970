package extract

// plainExtractor passes raw lines through for tools that write
// unstructured text. The terminator the line scanner stripped is
// restored so one input line stays one output line.
type plainExtractor struct{}

func (plainExtractor) Name() string { return "plain" }

func (plainExtractor) Extract(line string) (string, bool) {
	return line + "\n", true
}

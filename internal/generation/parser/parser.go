// Package parser turns raw model output into a message and a set of
// files. Parsing is total: it never panics and never returns an error;
// how far it had to go is reported as an Outcome.
package parser

// Outcome reports which layer produced the result.
type Outcome string

const (
	OutcomeParsed   Outcome = "parsed"
	OutcomeRepaired Outcome = "repaired"
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
)

// FailedMessage is the message of a result no layer could read.
const FailedMessage = "The model's response could not be read. No files were changed; please try again."

type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type Result struct {
	Message string  `json:"message"`
	Files   []File  `json:"files"`
	Outcome Outcome `json:"outcome"`
}

// FileMap gives name -> content. A repeated name keeps the last content.
func (r Result) FileMap() map[string]string {
	out := make(map[string]string, len(r.Files))
	for _, f := range r.Files {
		out[f.Name] = f.Content
	}
	return out
}

// Produced reports whether the model output yielded any text or files.
func (r Result) Produced() bool {
	return r.Outcome != OutcomeFailed && (r.Message != "" || len(r.Files) > 0)
}

// Parse runs the layers in order: fences, object location, strict
// decode, repair, fragment extraction.
func Parse(raw string) Result {
	text := StripFences(raw)

	obj, ok := LocateObject(text)
	if !ok {
		return Result{Message: FailedMessage, Outcome: OutcomeFailed}
	}

	if res, ok := DecodeStrict(obj); ok {
		res.Outcome = OutcomeParsed
		return res
	}

	msg, files := Extract(obj)

	if fixed, ok := Repair(obj); ok {
		res, _ := DecodeStrict(fixed)
		// A repair that cut back past files the scanner can still see
		// loses to the scanner.
		if len(files) <= len(res.Files) {
			res.Outcome = OutcomeRepaired
			return res
		}
	}

	if msg != "" || len(files) > 0 {
		return Result{Message: msg, Files: files, Outcome: OutcomePartial}
	}

	return Result{Message: FailedMessage, Outcome: OutcomeFailed}
}

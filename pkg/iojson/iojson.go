// iojson are utilities for writing structured JSON results from a
// command line interface perspective.
package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Result is the envelope every operation answers with when JSON output is
// requested.
type Result struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK builds a success envelope.
func OK(status string, data any) Result {
	return Result{Status: status, Data: data}
}

// Failure builds an error envelope.
func Failure(code, message string) Result {
	return Result{Status: "error", Code: code, Message: message}
}

// WriteWith writes obj as indented JSON to w, reporting marshal failures
// on ew.
func WriteWith(w io.Writer, ew io.Writer, obj any) error {
	bits, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		_, werr := fmt.Fprintf(ew, `{"status":"error","message":%q}`+"\n", err.Error())
		return werr
	}

	_, err = fmt.Fprintln(w, string(bits))
	return err
}

// Write calls WriteWith with [os.Stdout] and [os.Stderr].
func Write(obj any) error {
	return WriteWith(os.Stdout, os.Stderr, obj)
}

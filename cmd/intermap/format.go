package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// emit writes a response to stdout in the selected format.
func emit(v any) {
	switch formatFlag {
	case "json", "":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fatalf("encoding output: %v", err)
		}
		fmt.Println(string(data))
	case "yaml":
		// Round-trip through JSON so yaml output keeps the same field
		// names as json output.
		data, err := json.Marshal(v)
		if err != nil {
			fatalf("encoding output: %v", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			fatalf("encoding output: %v", err)
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			fatalf("encoding output: %v", err)
		}
		fmt.Print(string(out))
	default:
		fatalf("unsupported format: %s", formatFlag)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

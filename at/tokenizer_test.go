package at_test

import (
	"bufio"
	"strings"
	"testing"

	"i4.energy/across/emtool/at"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Simple AT command response",
			input:    "+CSQ: 15,99\r\nOK\r\n",
			expected: []string{"+CSQ: 15,99", "", "OK", ""},
		},
		{
			name:     "AT command with error",
			input:    "+CME ERROR: 10\r\n",
			expected: []string{"+CME ERROR: 10", ""},
		},
		{
			name:     "Bare line feeds",
			input:    "Manufacturer: Sierra Wireless, Incorporated\nModel: EM7455\nOK\n",
			expected: []string{"Manufacturer: Sierra Wireless, Incorporated", "Model: EM7455", "OK"},
		},
		{
			name:     "Challenge read",
			input:    "\r\nDEADBEEF\r\n\r\nOK\r\n",
			expected: []string{"", "", "DEADBEEF", "", "", "", "OK", ""},
		},
		// EOF scenarios - testing atEOF functionality
		{
			name:     "Incomplete response at EOF",
			input:    "IMEI: 490154203237518\r\nOK",
			expected: []string{"IMEI: 490154203237518", "", "OK"},
		},
		{
			name:     "Single token without line break at EOF",
			input:    "Model",
			expected: []string{"Model"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tokens []string
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(at.Splitter)

			for scanner.Scan() {
				tokens = append(tokens, scanner.Text())
			}

			if err := scanner.Err(); err != nil {
				t.Fatalf("Scanner error: %v", err)
			}

			if len(tokens) != len(tt.expected) {
				t.Fatalf("Expected %d tokens, got %d.\nExpected: %q\nGot: %q",
					len(tt.expected), len(tokens), tt.expected, tokens)
			}

			for i, expected := range tt.expected {
				if tokens[i] != expected {
					t.Errorf("Token %d: expected %q, got %q", i, expected, tokens[i])
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected at.LineType
	}{
		{name: "OK response", input: "OK", expected: at.TypeOK},
		{name: "ERROR response", input: "ERROR", expected: at.TypeError},
		{name: "CME Error", input: "+CME ERROR: 30", expected: at.TypeError},
		{name: "CMS Error", input: "+CMS ERROR: 500", expected: at.TypeError},

		{name: "Info line", input: "IMEI: 490154203237518", expected: at.TypeData},
		{name: "Extended result", input: "+CGMI: Sierra", expected: at.TypeData},
		{name: "OK inside payload", input: "OK-ish", expected: at.TypeData},
		{name: "Lower case ok", input: "ok", expected: at.TypeData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := at.Classify(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for input %q", tt.expected, result, tt.input)
			}
		})
	}
}

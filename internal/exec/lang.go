package exec

import "strings"

// Language describes how one allow-listed language is materialized and run
// inside the sandbox. Entry is the canonical source file name written into
// the job directory; Artifacts are build outputs purged before every write
// and again after the run.
type Language struct {
	Name      string
	Image     string
	Entry     string
	Run       []string
	Artifacts []string
}

var languages = map[string]Language{
	"python": {
		Name:  "python",
		Image: "python:3.11-slim",
		Entry: "Main.py",
		Run:   []string{"python3", "-u", "Main.py"},
	},
	"cpp": {
		Name:      "cpp",
		Image:     "gcc:13",
		Entry:     "Main.cpp",
		Run:       []string{"sh", "-c", "g++ Main.cpp -o Main && ./Main"},
		Artifacts: []string{"Main"},
	},
	"java": {
		Name:      "java",
		Image:     "eclipse-temurin:17-jdk",
		Entry:     "Main.java",
		Run:       []string{"java", "Main.java"},
		Artifacts: []string{"Main.class"},
	},
}

// Lookup resolves a language name (case-insensitive) against the allow-list.
func Lookup(name string) (Language, bool) {
	lang, ok := languages[strings.ToLower(strings.TrimSpace(name))]
	return lang, ok
}

package probe

import "github.com/rhuss/dojo/pkg/api"

// DefaultToolchains returns the built-in detection table. A non-empty
// override for a language replaces its candidate commands.
func DefaultToolchains(overrides map[api.Language]string) []Toolchain {
	tcs := []Toolchain{
		{
			Language: api.LanguagePython,
			Name:     "Python",
			Candidates: []Candidate{
				{Command: "python3", Args: []string{"--version"}},
				{Command: "python", Args: []string{"--version"}},
			},
			InstallationGuide: "Install Python 3 from https://www.python.org/downloads/ or your package manager (apt install python3, brew install python).",
		},
		{
			Language: api.LanguageJavaScript,
			Name:     "Node.js",
			Candidates: []Candidate{
				{Command: "node", Args: []string{"--version"}},
			},
			InstallationGuide: "Install Node.js LTS from https://nodejs.org/ or your package manager (apt install nodejs, brew install node).",
		},
		{
			Language: api.LanguageTypeScript,
			Name:     "TypeScript",
			Candidates: []Candidate{
				{Command: "tsc", Args: []string{"--version"}},
			},
			Requires:          []api.Language{api.LanguageJavaScript},
			InstallationGuide: "Install Node.js, then the TypeScript compiler: npm install -g typescript",
		},
		{
			Language: api.LanguageCPP,
			Name:     "C++",
			Candidates: []Candidate{
				{Command: "g++", Args: []string{"--version"}},
				{Command: "clang++", Args: []string{"--version"}},
			},
			InstallationGuide: "Install a C++17 compiler: apt install g++, brew install gcc, or xcode-select --install for clang.",
		},
	}

	for i := range tcs {
		if cmd := overrides[tcs[i].Language]; cmd != "" {
			tcs[i].Candidates = []Candidate{{Command: cmd, Args: []string{"--version"}}}
		}
	}
	return tcs
}

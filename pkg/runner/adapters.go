package runner

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/rhuss/dojo/pkg/api"
	"github.com/rhuss/dojo/pkg/sandbox"
)

type pythonAdapter struct {
	python Toolchain
}

func (a *pythonAdapter) Language() api.Language { return api.LanguagePython }

func (a *pythonAdapter) Prepare(dir string, sub Submission) (*Plan, error) {
	if err := requireCommand(a.python, "python"); err != nil {
		return nil, err
	}
	s, err := stage(dir, api.LanguagePython, sub)
	if err != nil {
		return nil, err
	}
	harness, err := writeHarness(dir, "kata_runner.py")
	if err != nil {
		return nil, err
	}

	args := append([]string{}, a.python.Flags...)
	args = append(args, "-B", harness)
	args = append(args, s.tests...)

	return &Plan{
		Dir:        dir,
		ReportPath: s.report,
		Run: sandbox.Command{
			Path: a.python.Command,
			Args: args,
			Dir:  dir,
			Env:  environ(s.report, "PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8", "PYTHONUNBUFFERED=1"),
		},
	}, nil
}

type javaScriptAdapter struct {
	node Toolchain
}

func (a *javaScriptAdapter) Language() api.Language { return api.LanguageJavaScript }

func (a *javaScriptAdapter) Prepare(dir string, sub Submission) (*Plan, error) {
	if err := requireCommand(a.node, "node"); err != nil {
		return nil, err
	}
	s, err := stage(dir, api.LanguageJavaScript, sub)
	if err != nil {
		return nil, err
	}
	harness, err := writeHarness(dir, "kata_runner.js")
	if err != nil {
		return nil, err
	}

	return &Plan{
		Dir:        dir,
		ReportPath: s.report,
		Run:        nodeCommand(a.node, dir, harness, s.report, s.tests),
	}, nil
}

type typeScriptAdapter struct {
	tsc  Toolchain
	node Toolchain
}

func (a *typeScriptAdapter) Language() api.Language { return api.LanguageTypeScript }

// buildDir receives the compiled JavaScript.
const buildDir = "build"

func (a *typeScriptAdapter) Prepare(dir string, sub Submission) (*Plan, error) {
	if err := requireCommand(a.tsc, "tsc"); err != nil {
		return nil, err
	}
	if err := requireCommand(a.node, "node"); err != nil {
		return nil, err
	}
	s, err := stage(dir, api.LanguageTypeScript, sub)
	if err != nil {
		return nil, err
	}
	if _, err := writeHarness(dir, "kata.d.ts"); err != nil {
		return nil, err
	}
	harness, err := writeHarness(dir, "kata_runner.js")
	if err != nil {
		return nil, err
	}

	files := append([]string{"kata.d.ts", s.entry}, s.tests...)
	if err := writeTSConfig(dir, files); err != nil {
		return nil, err
	}

	compileArgs := append([]string{"-p", "tsconfig.json"}, a.tsc.Flags...)

	compiled := make([]string, 0, len(s.tests))
	for _, t := range s.tests {
		compiled = append(compiled, filepath.Join(buildDir, strings.TrimSuffix(t, filepath.Ext(t))+".js"))
	}

	return &Plan{
		Dir:        dir,
		ReportPath: s.report,
		Compile: &sandbox.Command{
			Path: a.tsc.Command,
			Args: compileArgs,
			Dir:  dir,
			Env:  environ(s.report),
		},
		Run: nodeCommand(a.node, dir, harness, s.report, compiled),
	}, nil
}

type tsCompilerOptions struct {
	OutDir          string   `json:"outDir"`
	RootDir         string   `json:"rootDir"`
	Module          string   `json:"module"`
	Target          string   `json:"target"`
	Lib             []string `json:"lib"`
	Types           []string `json:"types"`
	ESModuleInterop bool     `json:"esModuleInterop"`
	SkipLibCheck    bool     `json:"skipLibCheck"`
	NoEmitOnError   bool     `json:"noEmitOnError"`
	Strict          bool     `json:"strict"`
}

func writeTSConfig(dir string, files []string) error {
	cfg := struct {
		CompilerOptions tsCompilerOptions `json:"compilerOptions"`
		Files           []string          `json:"files"`
	}{
		CompilerOptions: tsCompilerOptions{
			OutDir:          buildDir,
			RootDir:         ".",
			Module:          "commonjs",
			Target:          "es2019",
			Lib:             []string{"es2019"},
			Types:           []string{},
			ESModuleInterop: true,
			SkipLibCheck:    true,
			NoEmitOnError:   true,
		},
		Files: files,
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "tsconfig.json"), data)
}

func nodeCommand(node Toolchain, dir, harness, reportPath string, tests []string) sandbox.Command {
	args := append([]string{}, node.Flags...)
	args = append(args, harness)
	args = append(args, tests...)
	return sandbox.Command{
		Path: node.Command,
		Args: args,
		Dir:  dir,
		Env:  environ(reportPath, "NODE_NO_WARNINGS=1"),
	}
}

type cppAdapter struct {
	cxx Toolchain
}

func (a *cppAdapter) Language() api.Language { return api.LanguageCPP }

const (
	cppMain   = "kata_main.cpp"
	cppBinary = "kata_bin"
)

func (a *cppAdapter) Prepare(dir string, sub Submission) (*Plan, error) {
	if err := requireCommand(a.cxx, "c++ compiler"); err != nil {
		return nil, err
	}
	s, err := stage(dir, api.LanguageCPP, sub)
	if err != nil {
		return nil, err
	}
	if _, err := writeHarness(dir, "kata_test.hpp"); err != nil {
		return nil, err
	}
	if err := writeFile(filepath.Join(dir, cppMain), []byte(cppMainSource(s.entry, s.tests))); err != nil {
		return nil, err
	}

	binary := filepath.Join(dir, cppBinary)
	args := append([]string{}, a.cxx.Flags...)
	args = append(args, "-o", binary, cppMain)

	return &Plan{
		Dir:        dir,
		ReportPath: s.report,
		Compile: &sandbox.Command{
			Path: a.cxx.Command,
			Args: args,
			Dir:  dir,
			Env:  environ(s.report),
		},
		Run: sandbox.Command{
			Path: binary,
			Dir:  dir,
			Env:  environ(s.report),
		},
	}, nil
}

// cppMainSource builds a single translation unit so that tests register in
// definition order, public file first. A learner main is renamed out of
// the way.
func cppMainSource(entry string, tests []string) string {
	var b strings.Builder
	b.WriteString("#include \"kata_test.hpp\"\n\n")
	b.WriteString("#define main kata_learner_main\n")
	b.WriteString("#include \"" + entry + "\"\n")
	b.WriteString("#undef main\n\n")
	for _, t := range tests {
		b.WriteString("#include \"" + t + "\"\n")
	}
	b.WriteString(`
int main() {
  const char* report = std::getenv("KATA_REPORT");
  if (report == nullptr) {
    std::fprintf(stderr, "KATA_REPORT is not set\n");
    return 2;
  }
  return ::kata::run_all(report);
}
`)
	return b.String()
}

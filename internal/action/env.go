package action

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Env is the environment external tools run in. A zero Env inherits the
// parent process environment and working directory.
type Env struct {
	Dir  string
	Vars []string
	// Bin is the resolved tool binary, empty when PATH decides.
	Bin string
}

// DetectEnv looks for a Python virtual environment that provides tool and
// prepends its bin/ directory to PATH. Detection order: override, then
// <root>/.venv/, then the system PATH (no modification).
func DetectEnv(root, override, tool string) Env {
	env := Env{Dir: root}

	candidates := []string{}
	if override != "" {
		candidates = append(candidates, override)
	}
	if root != "" {
		candidates = append(candidates, filepath.Join(root, ".venv"))
	}

	for _, venv := range candidates {
		binDir := venvBinDir(venv)
		bin := filepath.Join(binDir, exeName(tool))
		if _, err := os.Stat(bin); err == nil {
			env.Vars = buildEnvWithPath(binDir)
			env.Bin = bin
			return env
		}
	}
	return env
}

func (e Env) apply(cmd *exec.Cmd) {
	if e.Vars != nil {
		cmd.Env = e.Vars
	}
	if e.Dir != "" {
		cmd.Dir = e.Dir
	}
}

// venvBinDir returns the bin (or Scripts on Windows) directory for a venv.
func venvBinDir(venvPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvPath, "Scripts")
	}
	return filepath.Join(venvPath, "bin")
}

func exeName(tool string) string {
	if runtime.GOOS == "windows" {
		return tool + ".exe"
	}
	return tool
}

// buildEnvWithPath copies the current environment with binDir prepended to
// PATH.
func buildEnvWithPath(binDir string) []string {
	env := os.Environ()
	result := make([]string, 0, len(env)+1)
	pathSet := false

	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			result = append(result, "PATH="+binDir+string(os.PathListSeparator)+e[5:])
			pathSet = true
		} else {
			result = append(result, e)
		}
	}

	if !pathSet {
		result = append(result, "PATH="+binDir)
	}
	return result
}

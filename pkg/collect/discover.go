package collect

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/panbanda/dbgfidelity/pkg/artifact"
)

var baselineDir = regexp.MustCompile(`-O[0123gsz]-standard$`)

// Build is one configuration directory of a target: the fuzz target
// binary compiled at Level with Pass disabled.
type Build struct {
	Dir    string
	Level  string
	Pass   string
	Binary string
}

// Name returns the directory name.
func (b Build) Name() string {
	return filepath.Base(b.Dir)
}

// Baseline reports whether the build is a level's -standard configuration.
func (b Build) Baseline() bool {
	return baselineDir.MatchString(b.Name())
}

// AllDisabled reports whether the build disables every pass.
func (b Build) AllDisabled() bool {
	return b.Pass == artifact.PassAll
}

// comparable reports whether the build's code can equal its baseline.
func (b Build) comparable() bool {
	return !strings.Contains(b.Name(), "-O0-all") && !b.Baseline()
}

// ParseBuildName splits "<name>-O<level><pass>" into level and pass.
func ParseBuildName(name string) (level, pass string, ok bool) {
	idx := strings.Index(name, "-O")
	if idx < 0 || idx+2 >= len(name) {
		return "", "", false
	}
	rest := name[idx+2:]
	return rest[:1], rest[1:], true
}

func priority(name string) int {
	switch {
	case strings.Contains(name, "-O0-all"):
		return 0
	case baselineDir.MatchString(name):
		return 1
	default:
		return 2
	}
}

// Discover lists the configuration directories of targetDir in tracing
// order: -O0-all first, then every -standard, then by name.
func Discover(targetDir, fuzzTarget string) ([]Build, error) {
	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingDir, targetDir)
	}
	var builds []Build
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		level, pass, ok := ParseBuildName(e.Name())
		if !ok {
			continue
		}
		dir := filepath.Join(targetDir, e.Name())
		builds = append(builds, Build{
			Dir:    dir,
			Level:  level,
			Pass:   pass,
			Binary: filepath.Join(dir, fuzzTarget),
		})
	}
	sort.SliceStable(builds, func(i, j int) bool {
		pi, pj := priority(builds[i].Name()), priority(builds[j].Name())
		if pi != pj {
			return pi < pj
		}
		return builds[i].Name() < builds[j].Name()
	})
	return builds, nil
}

// Inputs lists the regular files of a corpus directory.
func Inputs(corpusDir string) ([]string, error) {
	entries, err := os.ReadDir(corpusDir)
	if err != nil {
		return nil, fmt.Errorf("%w: corpus %s", ErrMissingDir, corpusDir)
	}
	var inputs []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			inputs = append(inputs, filepath.Join(corpusDir, e.Name()))
		}
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInputs, corpusDir)
	}
	sort.Strings(inputs)
	return inputs, nil
}

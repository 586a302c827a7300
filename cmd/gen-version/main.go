// Generates Go code holding the git-derived version of the source tree.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var (
	// Name of the Go file to write.
	outputfile = flag.String("o", "", "")

	// Package of the generated file.
	pkgName = flag.String("pkg", "main", "")

	// Version to record when git cannot describe the tree.
	fallback = flag.String("fallback", "notag", "")

	showHelp = flag.Bool("help", false, "")
)

const helpMessage = `
gen-version records the output of 'git describe' in a Go source file that sets
the gitVersion variable of a package.

Usage: gen-version [options] -o version.go

      -pkg        =string   Package of the generated file (default "main").
      -fallback   =string   Version used when git is unavailable (default "notag").
  -h, -help       (flag)    Show help message
`

const code = `// Code generated by gen-version. DO NOT EDIT.

package %s

func init() {
	gitVersion = %q
}
`

func describe() (string, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return "", fmt.Errorf("unable to find git command, alter PATH? %v", err)
	}
	out, err := exec.Command(gitPath, "describe", "--abbrev=7", "--tags", "--always", "--dirty").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() {
		fmt.Print(helpMessage)
	}
	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if !strings.HasSuffix(*outputfile, ".go") {
		fmt.Printf("The %q option naming a Go file is required\n", "-o foo.go")
		os.Exit(1)
	}

	version, err := describe()
	if err != nil {
		fmt.Printf("Using version %q: %v\n", *fallback, err)
		version = *fallback
	}
	goCode := fmt.Sprintf(code, *pkgName, version)
	if err := os.WriteFile(*outputfile, []byte(goCode), 0644); err != nil {
		fmt.Printf("Error saving go code: %v\n", err)
		os.Exit(1)
	}
}

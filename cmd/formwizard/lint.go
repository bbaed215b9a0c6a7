package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/templates"
)

type violation struct {
	file    string
	message string
}

func newLintCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [paths...]",
		Short: "Check wizard template documents",
		Long: `Check wizard template documents for incomplete steps, unknown field
types, invalid conditions and variants that fail to resolve. Directories are
walked for .yaml, .yml and .json files. Without paths the bundled templates
are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var violations []violation
			checked := 0
			if len(args) == 0 {
				err := fs.WalkDir(templates.FS(), ".", func(path string, entry fs.DirEntry, err error) error {
					if err != nil || entry.IsDir() {
						return err
					}
					data, err := fs.ReadFile(templates.FS(), path)
					if err != nil {
						return err
					}
					checked++
					violations = append(violations, lintDocument("bundled:"+path, data)...)
					return nil
				})
				if err != nil {
					return err
				}
			}
			for _, root := range args {
				files, err := templateFiles(root)
				if err != nil {
					return err
				}
				for _, path := range files {
					data, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("lint %s: %w", path, err)
					}
					checked++
					violations = append(violations, lintDocument(path, data)...)
				}
			}

			if len(violations) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d document(s) ok\n", checked)
				return nil
			}
			sort.SliceStable(violations, func(i, j int) bool {
				if violations[i].file == violations[j].file {
					return violations[i].message < violations[j].message
				}
				return violations[i].file < violations[j].file
			})
			for _, v := range violations {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", v.file, v.message)
			}
			return fmt.Errorf("lint: %d problem(s) found", len(violations))
		},
	}
}

func lintDocument(file string, data []byte) []violation {
	doc, err := schema.ParseDocument(data, file)
	if err != nil {
		return []violation{{file: file, message: err.Error()}}
	}
	if _, err := doc.Registry(); err != nil {
		return splitViolations(file, err)
	}
	return nil
}

// splitViolations reports each issue of a joined error on its own line.
func splitViolations(file string, err error) []violation {
	var out []violation
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, inner := range joined.Unwrap() {
			out = append(out, splitViolations(file, inner)...)
		}
		return out
	}
	var check *schema.CheckError
	if errors.As(err, &check) {
		for _, issue := range check.Issues {
			out = append(out, violation{file: file, message: fmt.Sprintf("%s/%s: %s", check.Kind, check.Discriminator, issue)})
		}
		return out
	}
	return []violation{{file: file, message: err.Error()}}
}

func templateFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var files []string
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

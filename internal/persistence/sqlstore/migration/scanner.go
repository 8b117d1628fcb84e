package migration

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type fileScanner struct {
	pattern *regexp.Regexp
}

// NewFileScanner creates a FileScanner for {version}_{description}.sql files.
func NewFileScanner() FileScanner {
	return &fileScanner{
		pattern: regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`),
	}
}

// ScanMigrations scans dir inside fsys, ignoring sub-directories and non-SQL files.
func (s *fileScanner) ScanMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewMigrationError("", dir, "scan directory", fmt.Errorf("migration directory does not exist"))
		}
		return nil, NewMigrationError("", dir, "read directory", err)
	}

	var migrations []Migration
	versions := make(map[int]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		if err := s.ValidateFileName(entry.Name()); err != nil {
			return nil, NewMigrationError("", entry.Name(), "validate filename", err)
		}

		migration, err := s.ParseMigrationFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		number, _ := strconv.Atoi(migration.Version)
		if existing, ok := versions[number]; ok {
			return nil, NewMigrationError(migration.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: version %s found in both %s and %s",
					ErrDuplicateVersion, migration.Version, existing, entry.Name()))
		}
		versions[number] = entry.Name()
		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return versionNumber(migrations[i].Version) < versionNumber(migrations[j].Version)
	})
	return migrations, nil
}

// ValidateFileName checks if migration file follows naming convention
func (s *fileScanner) ValidateFileName(filename string) error {
	matches := s.pattern.FindStringSubmatch(filename)
	if len(matches) != 3 {
		return fmt.Errorf("%w: filename '%s' does not match pattern '{version}_{description}.sql'",
			ErrInvalidMigrationFile, filename)
	}
	if _, err := strconv.Atoi(matches[1]); err != nil {
		return fmt.Errorf("%w: version '%s' in filename '%s' is not a valid number",
			ErrInvalidVersion, matches[1], filename)
	}
	return nil
}

// ParseMigrationFile reads and parses a single migration file
func (s *fileScanner) ParseMigrationFile(fsys fs.FS, filePath string) (*Migration, error) {
	filename := path.Base(filePath)
	if err := s.ValidateFileName(filename); err != nil {
		return nil, NewMigrationError("", filePath, "validate filename", err)
	}
	matches := s.pattern.FindStringSubmatch(filename)
	version := matches[1]

	content, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, NewMigrationError(version, filePath, "read file", err)
	}
	sqlContent := string(content)

	if strings.TrimSpace(sqlContent) == "" {
		return nil, NewMigrationError(version, filePath, "validate content",
			fmt.Errorf("%w: migration file is empty", ErrInvalidMigrationFile))
	}
	if err := validateSQLSyntax(sqlContent); err != nil {
		return nil, NewMigrationError(version, filePath, "validate SQL syntax", err)
	}

	description := descriptionFromContent(sqlContent)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	return &Migration{
		Version:     version,
		Description: description,
		SQL:         sqlContent,
		FilePath:    filePath,
		Checksum:    checksum(sqlContent),
	}, nil
}

func versionNumber(version string) int {
	n, _ := strconv.Atoi(version)
	return n
}

// validateSQLSyntax catches the mistakes that would otherwise surface mid-migration.
func validateSQLSyntax(sql string) error {
	clean := stripComments(sql)
	if strings.TrimSpace(clean) == "" {
		return fmt.Errorf("%w: no SQL statements found after removing comments", ErrInvalidMigrationFile)
	}

	depth := 0
	inString := false
	for _, r := range clean {
		switch {
		case r == '\'':
			inString = !inString
		case inString:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unmatched closing parenthesis", ErrInvalidMigrationFile)
			}
		}
	}
	if inString {
		return fmt.Errorf("%w: unterminated string literal", ErrInvalidMigrationFile)
	}
	if depth != 0 {
		return fmt.Errorf("%w: unmatched opening parenthesis", ErrInvalidMigrationFile)
	}
	return nil
}

// stripComments drops "--" comments and blank lines.
func stripComments(sql string) string {
	var lines []string
	for _, line := range strings.Split(sql, "\n") {
		if i := strings.Index(line, "--"); i != -1 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// descriptionFromContent reads a "-- Description: ..." line from the leading comment block.
func descriptionFromContent(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if rest, ok := strings.CutPrefix(line, "-- Description:"); ok {
			if desc := strings.TrimSpace(rest); desc != "" {
				return desc
			}
		}
	}
	return ""
}

func checksum(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}

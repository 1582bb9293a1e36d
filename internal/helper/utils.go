package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// pretty print
func PrettyPrint(w io.Writer, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Fprintln(w, string(b))
}

// CreateFolder creates path and its parents if they do not exist
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(level string, console bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
}

// StageFiles copies every source file into dir and returns the new paths in the same order.
// Files already inside dir, and files that cannot be copied, are returned unchanged.
// A base name seen earlier in the batch is staged under a fresh subfolder of dir.
func StageFiles(dir string, sources []string) ([]string, error) {
	if err := CreateFolder(dir); err != nil {
		return nil, err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	staged := make([]string, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		absSrc, err := filepath.Abs(src)
		if err != nil {
			return nil, err
		}
		if filepath.Dir(absSrc) == absDir {
			seen[filepath.Base(src)] = true
			staged = append(staged, src)
			continue
		}
		base := filepath.Base(src)
		target := dir
		if seen[base] {
			id, err := GenerateUUID()
			if err != nil {
				return nil, err
			}
			target = filepath.Join(dir, id)
			if err := CreateFolder(target); err != nil {
				return nil, err
			}
		}
		dst := filepath.Join(target, base)
		if err := copyFile(src, dst); err != nil {
			log.Warn().Err(err).Str("file", src).Msg("Failed to stage file")
			staged = append(staged, src)
			continue
		}
		seen[base] = true
		staged = append(staged, dst)
	}
	return staged, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

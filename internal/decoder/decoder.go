// Package decoder wraps the external save decoding tool. The decoded content
// is only used to decide whether a directory is a readable save and to read a
// couple of boolean flags; no game semantics are interpreted here.
package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// GameStateFile is the file inside a profile dir that carries the in-raid flag.
	GameStateFile = "persist.game.json"
	// CloudInitFile sits in the save root and carries the cloud sync flag.
	CloudInitFile = "steam_init.json"
)

var ErrNotDecodable = errors.New("decoder: not decodable")

// Probe answers whether a profile directory decodes and exposes the in-raid
// flag. A nil flag with a nil error means the file decoded but the field is
// absent or not a boolean.
type Probe interface {
	ReadInRaid(ctx context.Context, profileDir string) (*bool, error)
}

// Validate runs p against dir and fails unless a boolean flag was read.
func Validate(ctx context.Context, p Probe, dir string) error {
	v, err := p.ReadInRaid(ctx, dir)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: %s has no boolean inraid field", ErrNotDecodable, dir)
	}
	return nil
}

// SaveDecoder shells out to `java -jar <jar> decode -o <out> <file>`.
type SaveDecoder struct {
	JarPath  string
	JavaPath string
	Logger   *slog.Logger
}

func New(jarPath, javaPath string, logger *slog.Logger) *SaveDecoder {
	if javaPath == "" {
		javaPath = "java"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveDecoder{JarPath: jarPath, JavaPath: javaPath, Logger: logger}
}

// EnsureReady checks that the jar exists and a Java runtime can be started.
func (d *SaveDecoder) EnsureReady(ctx context.Context) error {
	if _, err := os.Stat(d.JarPath); err != nil {
		return fmt.Errorf("decoder: tool not found: %s", d.JarPath)
	}
	if err := exec.CommandContext(ctx, d.JavaPath, "-version").Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return fmt.Errorf("decoder: java runtime not found: %w", err)
		}
	}
	return nil
}

// DecodeFile decodes one save file into a generic JSON document.
func (d *SaveDecoder) DecodeFile(ctx context.Context, src string) (map[string]any, error) {
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("%w: missing file %s", ErrNotDecodable, src)
	}
	tmp, err := os.MkdirTemp("", "sg_decode_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	out := filepath.Join(tmp, "decoded.json")
	cmd := exec.CommandContext(ctx, d.JavaPath, "-jar", d.JarPath, "decode", "-o", out, src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		d.Logger.Debug("decode failed", "file", src, "error", err, "output", msg)
		return nil, fmt.Errorf("%w: %s: %s", ErrNotDecodable, filepath.Base(src), firstNonEmpty(msg, err.Error()))
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: no output for %s", ErrNotDecodable, filepath.Base(src))
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: unparsable output for %s: %v", ErrNotDecodable, filepath.Base(src), err)
	}
	return doc, nil
}

func (d *SaveDecoder) ReadInRaid(ctx context.Context, profileDir string) (*bool, error) {
	doc, err := d.DecodeFile(ctx, filepath.Join(profileDir, GameStateFile))
	if err != nil {
		return nil, err
	}
	return baseRootBool(doc, "inraid"), nil
}

// ReadCloudEnabled reads the cloud sync flag from the save root. A missing
// marker file yields nil without error.
func (d *SaveDecoder) ReadCloudEnabled(ctx context.Context, saveRoot string) (*bool, error) {
	p := filepath.Join(saveRoot, CloudInitFile)
	if _, err := os.Stat(p); err != nil {
		return nil, nil
	}
	doc, err := d.DecodeFile(ctx, p)
	if err != nil {
		return nil, err
	}
	return baseRootBool(doc, "steam_cloud_enabled"), nil
}

func baseRootBool(doc map[string]any, field string) *bool {
	root, ok := doc["base_root"].(map[string]any)
	if !ok {
		return nil
	}
	v, ok := root[field].(bool)
	if !ok {
		return nil
	}
	return &v
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

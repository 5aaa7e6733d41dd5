package processor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"podscrub/internal/fileutil"
	"podscrub/internal/logging"
	"podscrub/internal/textutil"
)

// stageFetch ensures the source audio sits inside the job workspace, either
// downloaded from the post's audio URL or copied from a local path.
func (p *Pipeline) stageFetch(ctx context.Context, jc *JobContext) error {
	source := strings.TrimSpace(jc.Post.AudioURL)
	if source == "" {
		return errors.New("post has no audio url")
	}

	dest := filepath.Join(jc.WorkDir, "source"+audioExt(source))
	if remote, ok := remoteURL(source); ok {
		if err := p.downloadAudio(ctx, remote, dest); err != nil {
			return err
		}
	} else {
		if _, err := os.Stat(source); err != nil {
			return fmt.Errorf("local audio: %w", err)
		}
		if err := fileutil.Copy(source, dest); err != nil {
			return fmt.Errorf("copy local audio: %w", err)
		}
	}
	jc.SourcePath = dest
	return nil
}

func remoteURL(source string) (*url.URL, bool) {
	parsed, err := url.Parse(source)
	if err != nil {
		return nil, false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, false
	}
	return parsed, true
}

func audioExt(source string) string {
	candidate := source
	if parsed, ok := remoteURL(source); ok {
		candidate = parsed.Path
	}
	ext := strings.ToLower(path.Ext(candidate))
	switch ext {
	case ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".flac":
		return ext
	default:
		return ".mp3"
	}
}

func (p *Pipeline) downloadAudio(ctx context.Context, remote *url.URL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remote.String(), nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := p.download.Do(req)
	if err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download audio: http %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create source file: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("write source file: %w", err)
	}
	if written == 0 {
		_ = os.Remove(dest)
		return errors.New("download audio: empty response body")
	}
	return nil
}

// stageTranscribe runs the configured transcriber command and records the
// transcript location.
func (p *Pipeline) stageTranscribe(ctx context.Context, jc *JobContext) error {
	output := filepath.Join(jc.WorkDir, "transcript.json")
	name, args, err := expandTemplate(p.cfg.Processor.TranscribeCommand, map[string]string{
		"{input}":  jc.SourcePath,
		"{output}": output,
	})
	if err != nil {
		return fmt.Errorf("transcribe command: %w", err)
	}
	if err := p.runner(ctx, name, args...); err != nil {
		return err
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("transcriber produced no output: %w", err)
	}
	jc.TranscriptPath = output
	return nil
}

// stageDetect formats the transcript for the model, asks it for ad
// segments, and rejects spans the transcript does not back up.
func (p *Pipeline) stageDetect(ctx context.Context, jc *JobContext) error {
	data, err := os.ReadFile(jc.TranscriptPath)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	lines, err := ParseTranscript(data)
	if err != nil {
		return err
	}
	segments, err := p.detector.DetectAdSegments(ctx, FormatPrompt(lines))
	if err != nil {
		return err
	}
	verified, rejected := verifySegments(segments, lines)
	jc.Segments = verified
	p.logger.Info("ad detection finished",
		logging.String(logging.FieldJobID, jc.Job.ID),
		logging.Int("segments", len(verified)),
		logging.Int("rejected", rejected))
	return nil
}

// stageCut removes the detected segments with the configured editor. With
// nothing to cut the source passes through untouched.
func (p *Pipeline) stageCut(ctx context.Context, jc *JobContext) error {
	if len(jc.Segments) == 0 {
		jc.OutputPath = jc.SourcePath
		return nil
	}

	segmentsPath := filepath.Join(jc.WorkDir, "segments.json")
	encoded, err := json.Marshal(jc.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	if err := os.WriteFile(segmentsPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write segments file: %w", err)
	}

	output := filepath.Join(jc.WorkDir, "output"+filepath.Ext(jc.SourcePath))
	name, args, err := expandTemplate(p.cfg.Processor.CutCommand, map[string]string{
		"{input}":    jc.SourcePath,
		"{segments}": segmentsPath,
		"{output}":   output,
	})
	if err != nil {
		return fmt.Errorf("cut command: %w", err)
	}
	if err := p.runner(ctx, name, args...); err != nil {
		return err
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("editor produced no output: %w", err)
	}
	jc.OutputPath = output
	return nil
}

// stagePublish copies the result into the library with integrity checks and
// tears down the workspace.
func (p *Pipeline) stagePublish(ctx context.Context, jc *JobContext) error {
	libraryDir := strings.TrimSpace(p.cfg.Paths.LibraryDir)
	if libraryDir == "" {
		return errors.New("library dir not configured")
	}
	if err := os.MkdirAll(libraryDir, 0o755); err != nil {
		return fmt.Errorf("create library dir: %w", err)
	}

	dest := filepath.Join(libraryDir, publishedFileName(jc.Post.Title, jc.Post.GUID, filepath.Ext(jc.OutputPath)))
	digest, err := fileutil.CopyVerified(jc.OutputPath, dest)
	if err != nil {
		return fmt.Errorf("publish copy: %w", err)
	}
	jc.PublishedPath = dest
	p.logger.Debug("published processed audio",
		logging.String(logging.FieldPostGUID, jc.Post.GUID),
		logging.String("path", dest),
		logging.String("sha256", digest))

	if jc.WorkDir != "" {
		_ = os.RemoveAll(jc.WorkDir)
	}
	return nil
}

// publishedFileName derives a stable, filesystem-safe library name. The
// short GUID digest keeps same-titled episodes from colliding.
func publishedFileName(title, guid, ext string) string {
	base := textutil.SanitizeFileName(title)
	if base == "" {
		base = textutil.SanitizeToken(guid)
	}
	digest := sha256.Sum256([]byte(guid))
	if ext == "" {
		ext = ".mp3"
	}
	return fmt.Sprintf("%s-%s%s", base, hex.EncodeToString(digest[:4]), ext)
}

// expandTemplate splits a command template into argv, substituting
// placeholder tokens inside each field.
func expandTemplate(template string, vars map[string]string) (string, []string, error) {
	fields := strings.Fields(template)
	if len(fields) == 0 {
		return "", nil, errors.New("empty command template")
	}
	expanded := make([]string, len(fields))
	for i, field := range fields {
		for placeholder, value := range vars {
			field = strings.ReplaceAll(field, placeholder, value)
		}
		expanded[i] = field
	}
	return expanded[0], expanded[1:], nil
}

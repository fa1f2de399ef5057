package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"limner/internal/knowledge"
	"limner/internal/services"
)

// Seeder discovers the entities a document introduces before enrichment
// begins.
type Seeder interface {
	DiscoverEntities(ctx context.Context, documentID, text string) ([]knowledge.Seed, error)
}

// AnalyzeRequest carries one unit's text to the scene analyzer.
type AnalyzeRequest struct {
	DocumentID string `json:"document_id"`
	UnitID     string `json:"unit_id"`
	Text       string `json:"text"`
}

// Analyzer turns a unit of document text into scene descriptions.
type Analyzer interface {
	AnalyzeUnit(ctx context.Context, req AnalyzeRequest) ([]string, error)
}

// IllustrateRequest carries one scene to the illustrator. KnowledgeBase is
// the rendered text projection so renders stay visually consistent across
// units.
type IllustrateRequest struct {
	DocumentID    string `json:"document_id"`
	UnitID        string `json:"unit_id"`
	Scene         string `json:"scene"`
	Style         string `json:"style"`
	KnowledgeBase string `json:"knowledge_base"`
	OutputPath    string `json:"output_path"`
}

// Illustrator renders one scene to an image file and returns its path.
type Illustrator interface {
	Illustrate(ctx context.Context, req IllustrateRequest) (string, error)
}

// DefaultCapabilityTimeout applies when the config leaves the capability
// timeout unset.
const DefaultCapabilityTimeout = 300 * time.Second

// capabilityCommand shells out to an external tool that reads a JSON request
// on stdin and writes a JSON response on stdout.
type capabilityCommand struct {
	name    string
	argv    []string
	timeout time.Duration
}

func newCapabilityCommand(name, command string, timeoutSeconds int) *capabilityCommand {
	argv := strings.Fields(strings.TrimSpace(command))
	if len(argv) == 0 {
		return nil
	}
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultCapabilityTimeout
	}
	return &capabilityCommand{name: name, argv: argv, timeout: timeout}
}

func (c *capabilityCommand) run(ctx context.Context, request, response any) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, c.name, "encode request", "", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.argv[0], c.argv[1:]...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		return services.Wrap(services.ErrExternalTool, c.name, "run", detail, err)
	}
	if err := json.Unmarshal(stdout.Bytes(), response); err != nil {
		return services.Wrap(services.ErrExternalTool, c.name, "decode response", "", err)
	}
	return nil
}

type externalSeeder struct {
	cmd *capabilityCommand
}

// NewExternalSeeder wraps an entity-seeding command. Returns nil when the
// command is not configured.
func NewExternalSeeder(command string, timeoutSeconds int) Seeder {
	cmd := newCapabilityCommand("seeder", command, timeoutSeconds)
	if cmd == nil {
		return nil
	}
	return &externalSeeder{cmd: cmd}
}

func (s *externalSeeder) DiscoverEntities(ctx context.Context, documentID, text string) ([]knowledge.Seed, error) {
	request := struct {
		DocumentID string `json:"document_id"`
		Text       string `json:"text"`
	}{DocumentID: documentID, Text: text}
	var response struct {
		Entities []knowledge.Seed `json:"entities"`
	}
	if err := s.cmd.run(ctx, request, &response); err != nil {
		return nil, err
	}
	return response.Entities, nil
}

type externalAnalyzer struct {
	cmd *capabilityCommand
}

// NewExternalAnalyzer wraps a scene-analysis command. Returns nil when the
// command is not configured.
func NewExternalAnalyzer(command string, timeoutSeconds int) Analyzer {
	cmd := newCapabilityCommand("analyzer", command, timeoutSeconds)
	if cmd == nil {
		return nil
	}
	return &externalAnalyzer{cmd: cmd}
}

func (a *externalAnalyzer) AnalyzeUnit(ctx context.Context, req AnalyzeRequest) ([]string, error) {
	var response struct {
		Scenes []string `json:"scenes"`
	}
	if err := a.cmd.run(ctx, req, &response); err != nil {
		return nil, err
	}
	return response.Scenes, nil
}

type externalIllustrator struct {
	cmd *capabilityCommand
}

// NewExternalIllustrator wraps an image-generation command. Returns nil when
// the command is not configured.
func NewExternalIllustrator(command string, timeoutSeconds int) Illustrator {
	cmd := newCapabilityCommand("illustrator", command, timeoutSeconds)
	if cmd == nil {
		return nil
	}
	return &externalIllustrator{cmd: cmd}
}

func (i *externalIllustrator) Illustrate(ctx context.Context, req IllustrateRequest) (string, error) {
	var response struct {
		ImagePath string `json:"image_path"`
	}
	if err := i.cmd.run(ctx, req, &response); err != nil {
		return "", err
	}
	if strings.TrimSpace(response.ImagePath) == "" {
		return "", services.Wrap(services.ErrExternalTool, "illustrator", "run", "empty image path in response", nil)
	}
	return response.ImagePath, nil
}

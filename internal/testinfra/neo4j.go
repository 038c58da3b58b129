//go:build integration

// Package testinfra starts real backing services in Docker for the
// integration suites. Build with -tags integration.
package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DefaultNeo4jImage = "neo4j:5.26-community"
	Neo4jBoltPort     = "7687/tcp"
	Neo4jPassword     = "tunegraph-test"
)

// Neo4jContainer is a running single-instance Neo4j.
type Neo4jContainer struct {
	testcontainers.Container
	BoltURI  string
	User     string
	Password string
}

type Neo4jOption func(*neo4jConfig)

type neo4jConfig struct {
	image        string
	startTimeout time.Duration
}

func WithNeo4jImage(image string) Neo4jOption {
	return func(c *neo4jConfig) { c.image = image }
}

func WithStartTimeout(timeout time.Duration) Neo4jOption {
	return func(c *neo4jConfig) { c.startTimeout = timeout }
}

// NewNeo4jContainer starts Neo4j with basic auth and waits until Bolt
// accepts connections.
func NewNeo4jContainer(ctx context.Context, opts ...Neo4jOption) (*Neo4jContainer, error) {
	cfg := &neo4jConfig{
		image:        DefaultNeo4jImage,
		startTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{Neo4jBoltPort},
		Env: map[string]string{
			"NEO4J_AUTH": "neo4j/" + Neo4jPassword,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(Neo4jBoltPort),
			wait.ForLog("Started."),
		).WithStartupTimeout(cfg.startTimeout),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, Neo4jBoltPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &Neo4jContainer{
		Container: container,
		BoltURI:   fmt.Sprintf("bolt://%s:%s", host, port.Port()),
		User:      "neo4j",
		Password:  Neo4jPassword,
	}, nil
}

// SkipIfNoDocker skips the test when no Docker daemon answers.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// CleanupContainer terminates c and logs instead of failing.
func CleanupContainer(t *testing.T, ctx context.Context, c testcontainers.Container) {
	t.Helper()
	if c == nil {
		return
	}
	if err := c.Terminate(ctx); err != nil {
		t.Logf("Warning: failed to terminate container: %v", err)
	}
}

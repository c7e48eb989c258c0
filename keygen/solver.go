package keygen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

//go:generate go tool mockgen -source=solver.go -destination=mock_solver.go -package=keygen

// Solver derives the response token for a challenge emitted by a device of
// the given class. Variant selects one of the vendor's key tables.
type Solver interface {
	Solve(ctx context.Context, deviceClass, challenge string, variant int) (string, error)
}

// Func adapts a plain function to a Solver.
type Func func(ctx context.Context, deviceClass, challenge string, variant int) (string, error)

func (f Func) Solve(ctx context.Context, deviceClass, challenge string, variant int) (string, error) {
	return f(ctx, deviceClass, challenge, variant)
}

// ErrEmptyResponse is returned when a solver produced no token.
var ErrEmptyResponse = errors.New("keygen: empty response")

// CommandSolver runs an external key generator. The device class, challenge
// and variant are appended to Args and the trimmed standard output is the
// response token.
type CommandSolver struct {
	Path string
	Args []string
}

func (s CommandSolver) Solve(ctx context.Context, deviceClass, challenge string, variant int) (string, error) {
	if s.Path == "" {
		return "", errors.New("keygen: no command configured")
	}

	args := append(append([]string(nil), s.Args...), deviceClass, challenge, strconv.Itoa(variant))
	cmd := exec.CommandContext(ctx, s.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("keygen: run %s: %w: %s", s.Path, err, strings.TrimSpace(stderr.String()))
	}

	response := strings.TrimSpace(string(out))
	if response == "" {
		return "", ErrEmptyResponse
	}
	return response, nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tccoin/museum-agent/pkg/config"
	"github.com/tccoin/museum-agent/runtime/tools"
)

// localHandlers are the tool implementations museumctl provides. Tools an
// agent set declares without a handler here are answered with the default
// output by the session.
func localHandlers(out io.Writer) map[string]tools.Handler {
	return map[string]tools.Handler{
		"show_image": showImage(out),
	}
}

type showImageArgs struct {
	ImagePath string `json:"image_path"`
	AltText   string `json:"alt_text,omitempty"`
}

// showImage stands in for the kiosk display: it prints the image to show.
func showImage(out io.Writer) tools.HandlerFunc {
	return func(_ context.Context, raw json.RawMessage) (any, error) {
		var args showImageArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode show_image arguments: %w", err)
		}
		if args.AltText != "" {
			fmt.Fprintf(out, "[image] %s (%s)\n", args.ImagePath, args.AltText)
		} else {
			fmt.Fprintf(out, "[image] %s\n", args.ImagePath)
		}
		return map[string]any{"displayed": true, "image_path": args.ImagePath}, nil
	}
}

// newToolRegistry describes every tool of the set so arguments are
// validated, and attaches the local handlers that exist.
func newToolRegistry(set *config.AgentSet, out io.Writer) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	handlers := localHandlers(out)
	for _, name := range set.Graph.Names() {
		agent, err := set.Graph.Agent(name)
		if err != nil {
			return nil, err
		}
		for _, def := range agent.Tools {
			desc, err := tools.DescriptorFromDefinition(def)
			if err != nil {
				return nil, err
			}
			if err := registry.Describe(desc); err != nil {
				return nil, err
			}
			if h, ok := handlers[def.Name]; ok {
				if err := registry.Handle(def.Name, h); err != nil {
					return nil, err
				}
			}
		}
	}
	return registry, nil
}

package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	geoerrors "github.com/geoflow-cds/geoflow/internal/errors"
)

// backupTimeFormat names backup files so successive updates never clobber
// each other.
const backupTimeFormat = "20060102-150405"

// UpdateInstructions rewrites one agent's prompt in the agents file,
// preserving document structure and comments via the yaml.v3 node API.
// A timestamped backup of the current file is written first, then the
// in-memory registry reloads from the updated file.
//
// For main agents the "instructions" key is updated; for subagents,
// "prompt".
func (r *Registry) UpdateInstructions(agentName string, isMainAgent bool, newPrompt string) (string, error) {
	if newPrompt == "" {
		return "", geoerrors.InvalidArgument("new prompt must not be empty")
	}

	// Validate the name against the current view before touching disk.
	if isMainAgent {
		if _, err := r.MainAgent(agentName); err != nil {
			return "", err
		}
	} else {
		if _, err := r.Subagent(agentName); err != nil {
			return "", err
		}
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return "", geoerrors.Wrap(err, geoerrors.ErrCodeConfigNotFound,
			"failed to read agents config")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", geoerrors.Wrap(err, geoerrors.ErrCodeConfigInvalid,
			"failed to parse agents config")
	}

	section, field := "subagents", "prompt"
	if isMainAgent {
		section, field = "main_agents", "instructions"
	}

	target := findMappingValue(findMappingValue(documentRoot(&doc), section), agentName)
	if target == nil {
		return "", geoerrors.Newf(geoerrors.ErrCodeAgentNotFound,
			"%s %q not present in %s", field, agentName, r.path)
	}

	fieldNode := findMappingValue(target, field)
	if fieldNode == nil {
		// Agent exists but never declared the field; append it.
		target.Content = append(target.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: field},
			&yaml.Node{Kind: yaml.ScalarNode, Value: newPrompt, Style: promptStyle(newPrompt)},
		)
	} else {
		fieldNode.SetString(newPrompt)
		fieldNode.Style = promptStyle(newPrompt)
	}

	backupPath := fmt.Sprintf("%s.backup-%s", r.path, time.Now().Format(backupTimeFormat))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", geoerrors.Wrap(err, geoerrors.ErrCodeInternal,
			"failed to write backup")
	}

	updated, err := yaml.Marshal(&doc)
	if err != nil {
		return "", geoerrors.Wrap(err, geoerrors.ErrCodeInternal,
			"failed to serialize agents config")
	}
	if err := os.WriteFile(r.path, updated, 0o644); err != nil {
		return "", geoerrors.Wrap(err, geoerrors.ErrCodeInternal,
			"failed to write agents config")
	}

	if err := r.Reload(); err != nil {
		return "", err
	}
	return backupPath, nil
}

// promptStyle keeps multiline prompts readable as literal blocks.
func promptStyle(s string) yaml.Style {
	for _, r := range s {
		if r == '\n' {
			return yaml.LiteralStyle
		}
	}
	return 0
}

// documentRoot unwraps the document node to its mapping.
func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return doc
}

// findMappingValue returns the value node for key within a mapping node.
func findMappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

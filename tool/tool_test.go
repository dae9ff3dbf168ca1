package tool

import (
	"context"
	"testing"
)

func TestToolExecution(t *testing.T) {
	ctx := context.Background()

	tl := &Tool{
		Name:        "echo_tool",
		Description: "Echoes the input",
		Parameters: []Parameter{
			{Name: "input", Type: "string", Description: "Text to echo", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any, onProgress ProgressFunc) (string, error) {
			onProgress("run", "echoing")
			return args["input"].(string) + "_processed", nil
		},
	}

	var stages []string
	result, err := tl.Execute(ctx, map[string]any{"input": "test"}, func(stage, msg string) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "test_processed" {
		t.Errorf("result = %q, want test_processed", result)
	}
	if len(stages) != 1 || stages[0] != "run" {
		t.Errorf("stages = %v, want [run]", stages)
	}
}

func TestToolExecuteNilProgress(t *testing.T) {
	tl := &Tool{
		Name: "noop",
		Handler: func(ctx context.Context, args map[string]any, onProgress ProgressFunc) (string, error) {
			onProgress("stage", "must not panic")
			return "ok", nil
		},
	}
	if _, err := tl.Execute(context.Background(), nil, nil); err != nil {
		t.Fatalf("Execute with nil progress: %v", err)
	}
}

func TestToolValidation(t *testing.T) {
	tl := &Tool{
		Name: "strict",
		Parameters: []Parameter{
			{Name: "required_param", Type: "string", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]any, onProgress ProgressFunc) (string, error) {
			return "ok", nil
		},
	}

	if _, err := tl.Execute(context.Background(), map[string]any{}, nil); err == nil {
		t.Error("expected error for missing required parameter")
	}
	if _, err := tl.Execute(context.Background(), map[string]any{"required_param": "v"}, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegistryRejectsReservedCharacters(t *testing.T) {
	registry := NewRegistry()

	bad := []string{"has:colon", "has]bracket", "has space", "", "1leading"}
	for _, name := range bad {
		if err := registry.Register(&Tool{Name: name}); err == nil {
			t.Errorf("Register(%q) accepted a reserved name", name)
		}
	}

	if err := registry.Register(&Tool{Name: "edit_website"}); err != nil {
		t.Errorf("Register(edit_website): %v", err)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&Tool{Name: "generate_leads"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(&Tool{Name: "generate_leads"}); err == nil {
		t.Error("duplicate registration accepted")
	}
}

func TestRegistryListOrderAndLabels(t *testing.T) {
	registry := NewRegistry()
	names := []string{"generate_brand", "edit_website", "generate_leads"}
	for _, name := range names {
		if err := registry.Register(&Tool{Name: name, Label: "Label " + name}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	list := registry.List()
	if len(list) != len(names) {
		t.Fatalf("List() returned %d tools, want %d", len(list), len(names))
	}
	for i, tl := range list {
		if tl.Name != names[i] {
			t.Errorf("List()[%d] = %s, want %s", i, tl.Name, names[i])
		}
	}

	labels := registry.Labels()
	if labels["edit_website"] != "Label edit_website" {
		t.Errorf("Labels()[edit_website] = %q", labels["edit_website"])
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.Execute(context.Background(), "missing", nil, nil); err == nil {
		t.Error("expected error for unknown tool")
	}
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type FilesystemTool struct {
	Root string
}

func NewFilesystemTool(root string) *FilesystemTool {
	absRoot, _ := filepath.Abs(root)
	return &FilesystemTool{Root: absRoot}
}

func (f *FilesystemTool) Name() string {
	return "filesystem"
}

func (f *FilesystemTool) Description() string {
	return "Manage files in the working directory: read, write, append, list, stat, delete, mkdir, chmod."
}

func (f *FilesystemTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"enum":        []string{"read", "write", "append", "list", "stat", "delete", "mkdir", "chmod"},
				"description": "The operation to perform",
			},
			"filename": map[string]any{
				"type":        "string",
				"description": "The name of the file or directory",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write or append",
			},
			"mode": map[string]any{
				"type":        "string",
				"description": "Octal permission bits for 'chmod', e.g. '0755'",
			},
		},
		"required": []string{"command", "filename"},
	}
}

func (f *FilesystemTool) resolve(name string) (string, error) {
	target := filepath.Join(f.Root, name)
	rel, err := filepath.Rel(f.Root, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return target, nil
}

func (f *FilesystemTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Command  string `json:"command"`
		Filename string `json:"filename"`
		Content  string `json:"content"`
		Mode     string `json:"mode"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	target, err := f.resolve(args.Filename)
	if err != nil {
		return "", err
	}

	switch args.Command {
	case "read":
		data, err := os.ReadFile(target)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	case "write":
		if err := os.WriteFile(target, []byte(args.Content), 0644); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		return fmt.Sprintf("Successfully wrote to %s", args.Filename), nil
	case "append":
		fh, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return "", fmt.Errorf("failed to open file: %w", err)
		}
		defer fh.Close()
		if _, err := fh.WriteString(args.Content); err != nil {
			return "", fmt.Errorf("failed to append: %w", err)
		}
		return fmt.Sprintf("Successfully appended to %s", args.Filename), nil
	case "list":
		entries, err := os.ReadDir(target)
		if err != nil {
			return "", fmt.Errorf("failed to list directory: %w", err)
		}
		var b strings.Builder
		for _, entry := range entries {
			kind := "file"
			if entry.IsDir() {
				kind = "dir"
			}
			fmt.Fprintf(&b, "[%s] %s\n", kind, entry.Name())
		}
		if b.Len() == 0 {
			return "Directory is empty", nil
		}
		return b.String(), nil
	case "stat":
		info, err := os.Stat(target)
		if err != nil {
			return "", fmt.Errorf("failed to stat: %w", err)
		}
		return fmt.Sprintf("%s: %d bytes, mode %s, modified %s",
			args.Filename, info.Size(), info.Mode(), info.ModTime().Format("2006-01-02 15:04:05")), nil
	case "delete":
		if err := os.Remove(target); err != nil {
			return "", fmt.Errorf("failed to delete: %w", err)
		}
		return fmt.Sprintf("Successfully deleted %s", args.Filename), nil
	case "mkdir":
		if err := os.MkdirAll(target, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
		return fmt.Sprintf("Successfully created directory %s", args.Filename), nil
	case "chmod":
		var mode uint32
		if _, err := fmt.Sscanf(args.Mode, "%o", &mode); err != nil {
			return "", fmt.Errorf("invalid mode %q: %v", args.Mode, err)
		}
		if err := os.Chmod(target, os.FileMode(mode)); err != nil {
			return "", fmt.Errorf("failed to chmod: %w", err)
		}
		return fmt.Sprintf("Changed mode of %s to %s", args.Filename, args.Mode), nil
	default:
		return "Invalid command. Use 'read', 'write', 'append', 'list', 'stat', 'delete', 'mkdir', or 'chmod'", nil
	}
}

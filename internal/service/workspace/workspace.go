// Package workspace switches and lists a session's working directory.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/chat"
	chatsvc "github.com/zhouzirui/claude-code-chat/backend/internal/service/chat"
)

// ErrPathRequired is reported as a failed change, never returned.
var ErrPathRequired = errors.New("path is required")

const (
	MessageChanged      = "Changed directory to '%s'"
	MessageCreated      = "Created and changed directory to '%s'"
	MessageCreateFailed = "Failed to create directory: %s (%v)"
	MessageNotDirectory = "Path is not a directory: %s"
	MessageNoPermission = "Permission denied for this directory"
	MessageListFailed   = "Failed to list directory: %v"
)

// Sessions is the slice of the session store the manager needs.
type Sessions interface {
	GetOrCreate(ctx context.Context, sessionID string) (chat.Session, error)
	SetWorkingDirectory(ctx context.Context, sessionID, dir string) error
}

// ChangeResult reports a directory change. Directory is always the session's
// directory after the call, changed or not.
type ChangeResult struct {
	Success   bool
	Message   string
	Directory string
}

// Item is one immediate child of a working directory.
type Item struct {
	Name        string `json:"name"`
	IsDirectory bool   `json:"is_directory"`
	Path        string `json:"path"`
}

// Info is a directory listing. Error is set when the listing could not be read.
type Info struct {
	Directory string
	Items     []Item
	Error     string
}

// Manager validates, creates and switches session working directories.
type Manager struct {
	sessions Sessions
	logger   *log.Logger
}

// NewManager wires the manager to the session store.
func NewManager(sessions Sessions, logger *log.Logger) *Manager {
	return &Manager{sessions: sessions, logger: logger.WithPrefix("workspace")}
}

// Change resolves path against the session's directory and switches to it,
// creating it when missing. Session state is untouched on failure.
func (m *Manager) Change(ctx context.Context, sessionID, path string) (ChangeResult, error) {
	sess, err := m.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return ChangeResult{}, err
	}
	res := ChangeResult{Directory: sess.WorkingDirectory}

	if strings.TrimSpace(path) == "" {
		res.Message = ErrPathRequired.Error()
		return res, nil
	}

	target, err := resolve(sess.WorkingDirectory, path)
	if err != nil {
		res.Message = fmt.Sprintf(MessageCreateFailed, path, err)
		return res, nil
	}

	info, statErr := os.Stat(target)
	switch {
	case statErr == nil && info.IsDir():
		res.Message = fmt.Sprintf(MessageChanged, target)
	case statErr == nil:
		res.Message = fmt.Sprintf(MessageNotDirectory, target)
		m.logger.Warn("change rejected", "session", sessionID, "path", target)
		return res, nil
	case errors.Is(statErr, fs.ErrNotExist):
		if err := os.MkdirAll(target, 0o755); err != nil {
			res.Message = fmt.Sprintf(MessageCreateFailed, target, err)
			m.logger.Warn("create directory failed", "session", sessionID, "path", target, "err", err)
			return res, nil
		}
		res.Message = fmt.Sprintf(MessageCreated, target)
	default:
		res.Message = fmt.Sprintf(MessageCreateFailed, target, statErr)
		return res, nil
	}

	if err := m.sessions.SetWorkingDirectory(ctx, sessionID, target); err != nil {
		return ChangeResult{}, err
	}
	m.logger.Info("working directory changed", "session", sessionID, "dir", target)

	res.Success = true
	res.Directory = target
	return res, nil
}

// Info lists the immediate children of the session's working directory,
// directories first and then by case-insensitive name.
func (m *Manager) Info(ctx context.Context, sessionID string) (Info, error) {
	sess, err := m.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return Info{}, err
	}
	dir := sess.WorkingDirectory
	out := Info{Directory: dir, Items: []Item{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			out.Error = MessageNoPermission
		} else {
			out.Error = fmt.Sprintf(MessageListFailed, err)
		}
		m.logger.Warn("list directory failed", "session", sessionID, "dir", dir, "err", err)
		return out, nil
	}

	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		out.Items = append(out.Items, Item{Name: e.Name(), IsDirectory: isDir(e, p), Path: p})
	}
	sortItems(out.Items)
	return out, nil
}

func resolve(base, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return filepath.Abs(path)
}

// isDir follows symlinks so a link to a directory lists as one.
func isDir(e fs.DirEntry, path string) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir()
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDirectory != items[j].IsDirectory {
			return items[i].IsDirectory
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}

var _ Sessions = (*chatsvc.Service)(nil)

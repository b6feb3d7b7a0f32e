// Package webserver performs the final nginx and front-end fixups of the
// startup sequence.
package webserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"hgboot/internal/tactile"

	"golang.org/x/net/html"
)

// noCacheMeta are the http-equiv tags injected into the index page head.
var noCacheMeta = []struct{ equiv, content string }{
	{"Cache-Control", "no-cache, no-store, must-revalidate"},
	{"Pragma", "no-cache"},
	{"Expires", "0"},
}

// SwapConfig moves the nginx config from src to dst, copying across
// filesystems when a rename is not possible.
func SwapConfig(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove %s: %w", src, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// InjectNoCache adds cache-disabling meta tags to the head of the page at
// path. Tags already present are left alone, so repeated runs are stable.
// It reports whether the file was rewritten.
func InjectNoCache(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	out, changed, err := injectNoCache(data)
	if err != nil {
		return false, fmt.Errorf("failed to rewrite %s: %w", path, err)
	}
	if !changed {
		return false, nil
	}
	if err := os.WriteFile(path, out, fi.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func injectNoCache(data []byte) ([]byte, bool, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	head := findElement(doc, "head")
	if head == nil {
		return nil, false, errors.New("document has no head")
	}

	present := make(map[string]bool)
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "meta" {
			if equiv := getAttr(c, "http-equiv"); equiv != "" {
				present[strings.ToLower(equiv)] = true
			}
		}
	}

	// Inserted in reverse so the tags keep their order at the top of head.
	changed := false
	for i := len(noCacheMeta) - 1; i >= 0; i-- {
		m := noCacheMeta[i]
		if present[strings.ToLower(m.equiv)] {
			continue
		}
		head.InsertBefore(&html.Node{
			Type: html.ElementNode,
			Data: "meta",
			Attr: []html.Attribute{
				{Key: "http-equiv", Val: m.equiv},
				{Key: "content", Val: m.content},
			},
		}, head.FirstChild)
		changed = true
	}
	if !changed {
		return data, false, nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// Reload launches the web server reload command without waiting for it.
func Reload(ctx context.Context, executor tactile.Executor, argv []string) (*tactile.Handle, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty reload command")
	}
	return executor.Start(ctx, tactile.Command{
		Binary:    argv[0],
		Arguments: argv[1:],
		Tags:      map[string]string{"step": "reload"},
	})
}

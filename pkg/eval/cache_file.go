package eval

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
	"google.golang.org/protobuf/proto"
)

const envHeader = "# env: "

// FileCache is a Cache that can be saved to a file.
//
// Each line holds a quoted expression and its base64-encoded checked AST, separated by a
// tab. A header line records the fingerprint of the function declarations the
// expressions were checked against: entries are discarded when the fingerprint changes.
type FileCache struct {
	exprCache   sync.Map
	filename    string
	fingerprint string
	needsSave   bool
	mux         sync.Mutex
}

// NewFileCacheWithContent creates a FileCache with existing content, e.g. from an embedded file.
//
// Optionally, set a filename and call FileCache.Save to save the file.
func NewFileCacheWithContent(content []byte, filename string) (*FileCache, error) {
	c := &FileCache{filename: filename}
	if err := c.load(bytes.NewReader(content)); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFileCache creates a FileCache from a file, which does not need to exist yet.
//
// The caller will need to run the FileCache.Save method to save the file.
func NewFileCache(filename string) (*FileCache, error) {
	c := &FileCache{filename: filename}

	f, err := os.Open(c.filename)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return c, nil
	}
	defer f.Close()
	if err := c.load(f); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// SetEnvironment implements EnvironmentAware.
func (c *FileCache) SetEnvironment(fingerprint string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.fingerprint == fingerprint {
		return
	}
	c.exprCache.Clear()
	c.fingerprint = fingerprint
	c.needsSave = true
}

// Save writes the cache, sorted, if anything changed since it was loaded.
func (c *FileCache) Save() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if !c.needsSave {
		return nil
	}
	if c.filename == "" {
		return errors.New("no cache filename specified")
	}

	var (
		lines []string
		err   error
	)
	c.exprCache.Range(func(k, v any) bool {
		var s string
		s, err = marshalAST(v.(*cel.Ast)) //nolint:errcheck // the cached value type is known
		if err != nil {
			return false
		}
		lines = append(lines, strconv.Quote(k.(string))+"\t"+s) //nolint:errcheck // the cached key type is known
		return true
	})
	if err != nil {
		return err
	}
	// Sort the result as the cache may be committed.
	slices.Sort(lines)
	if c.fingerprint != "" {
		lines = append([]string{envHeader + c.fingerprint}, lines...)
	}
	if err := os.WriteFile(c.filename, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return err
	}
	c.needsSave = false
	return nil
}

func (c *FileCache) load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if fp, ok := strings.CutPrefix(line, envHeader); ok {
			c.fingerprint = strings.TrimSpace(fp)
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		quoted, err := strconv.QuotedPrefix(line)
		if err != nil {
			return fmt.Errorf("malformed line %d (expression not quoted)", lineNumber)
		}
		encoded, ok := strings.CutPrefix(line[len(quoted):], "\t")
		if !ok {
			return fmt.Errorf("malformed line %d (not tab-separated)", lineNumber)
		}
		expr, err := strconv.Unquote(quoted)
		if err != nil {
			return fmt.Errorf("malformed line %d: %w", lineNumber, err)
		}
		ast, err := unmarshalAST(encoded)
		if err != nil {
			return fmt.Errorf("could not unmarshal cached data at line %d: %w", lineNumber, err)
		}
		c.exprCache.Store(expr, ast)
	}
	return scanner.Err()
}

func (c *FileCache) Get(expr string) (*cel.Ast, bool) {
	if a, ok := c.exprCache.Load(expr); ok {
		return a.(*cel.Ast), true //nolint:errcheck // the cache type is known
	}
	return nil, false
}

func (c *FileCache) Set(expr string, ast *cel.Ast) error {
	c.mux.Lock()
	c.needsSave = true
	c.mux.Unlock()
	c.exprCache.Store(expr, ast)
	return nil
}

// Len counts the cached expressions.
func (c *FileCache) Len() int {
	n := 0
	c.exprCache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func marshalAST(ast *cel.Ast) (string, error) {
	checked, err := cel.AstToCheckedExpr(ast)
	if err != nil {
		return "", err
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(checked)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func unmarshalAST(str string) (*cel.Ast, error) {
	b, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, err
	}
	var m = &exprpb.CheckedExpr{}
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}

	return cel.CheckedExprToAst(m), nil
}

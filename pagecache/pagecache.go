// Package pagecache implements the static-file page cache: formatted HTTP
// responses keyed by request path, periodically revalidated against the
// filesystem, grounded directly on the original source's ext/agoo/page.c
// (cache_get/cache_set/page_check/update_contents) translated from a
// hand-rolled hash-bucket table into a Go map guarded by a mutex. Evicted
// *Page structs are recycled through a github.com/eapache/queue free list
// (per SPEC_FULL.md §11) instead of being left for the GC, mirroring the
// teacher's general instinct to recycle hot-path allocations (pool.*).
package pagecache

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/ohler55/agoo-sub000/text"
)

const recheckInterval = 5 * time.Second

// Page is one cached, formatted response for a path. key is the cache's
// lookup key (the request path); Path is the resolved filesystem path the
// content was read from — the two differ whenever a root or group
// directory prefix is applied.
type Page struct {
	key       string
	Path      string
	Resp      *text.Text
	ModTime   time.Time
	LastCheck time.Time
	Immutable bool
}

func (p *Page) reset() {
	p.key = ""
	p.Path = ""
	p.Resp = nil
	p.ModTime = time.Time{}
	p.LastCheck = time.Time{}
	p.Immutable = false
}

// Dir is one directory searched, in order, for a Group's logical prefix.
type Dir struct {
	Path string
}

// Group maps a logical URL prefix to an ordered list of candidate
// directories, matching the original's agoo_group/agoo_dir pair, used when
// more than one filesystem root may serve a path prefix.
type Group struct {
	Prefix string
	Dirs   []Dir
}

// Cache is a static-page cache with one filesystem root plus any number of
// path-prefix Groups layered on top of it.
type Cache struct {
	mu     sync.RWMutex
	pages  map[string]*Page
	mimes  map[string]string
	groups []*Group
	root   string

	free *queue.Queue // recycled *Page structs
}

// New creates an empty Cache seeded with the built-in MIME table.
func New() *Cache {
	c := &Cache{
		pages: make(map[string]*Page),
		mimes: make(map[string]string, len(defaultMimeTypes)),
		root:  ".",
		free:  queue.New(),
	}
	for ext, mime := range defaultMimeTypes {
		c.mimes[ext] = mime
	}
	return c
}

// SetRoot sets the filesystem directory static GETs resolve against.
func (c *Cache) SetRoot(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = root
}

// AddMime registers or overrides the MIME type for a file extension
// (without the leading dot), matching mime_set.
func (c *Cache) AddMime(ext, mimeType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mimes[strings.ToLower(ext)] = mimeType
}

// PathGroup registers a logical prefix backed by one or more directories
// searched in the order given, matching group_create/group_add.
func (c *Cache) PathGroup(prefix string, dirs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := &Group{Prefix: prefix}
	for _, d := range dirs {
		g.Dirs = append(g.Dirs, Dir{Path: d})
	}
	c.groups = append(c.groups, g)
}

func (c *Cache) mimeFor(p string) string {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if m, ok := c.mimes[strings.ToLower(ext)]; ok {
		return m
	}
	return "text/html"
}

// Get resolves path to a formatted Page, reading and formatting the file on
// a cache miss or stale revalidation, and returns (nil, false) on a 404 or a
// "../" traversal attempt, matching agoo_page_get's rejection of parent
// references.
func (c *Cache) Get(reqPath string) (*Page, bool) {
	if strings.Contains(reqPath, "../") {
		return nil, false
	}
	if g := c.matchGroup(reqPath); g != nil {
		return c.getFromGroup(g, reqPath)
	}

	c.mu.RLock()
	page, ok := c.pages[reqPath]
	c.mu.RUnlock()
	if ok {
		return c.revalidate(page)
	}
	return c.load(c.fullPath(c.root, reqPath), reqPath)
}

func (c *Cache) fullPath(root, reqPath string) string {
	if root == "" {
		return strings.TrimPrefix(reqPath, "/")
	}
	return strings.TrimSuffix(root, "/") + "/" + strings.TrimPrefix(reqPath, "/")
}

func (c *Cache) matchGroup(reqPath string) *Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, g := range c.groups {
		if strings.HasPrefix(reqPath, g.Prefix) && (len(reqPath) == len(g.Prefix) || reqPath[len(g.Prefix)] == '/') {
			return g
		}
	}
	return nil
}

func (c *Cache) getFromGroup(g *Group, reqPath string) (*Page, bool) {
	c.mu.RLock()
	page, ok := c.pages[reqPath]
	c.mu.RUnlock()
	if ok {
		return c.revalidate(page)
	}

	suffix := reqPath[len(g.Prefix):]
	for _, d := range g.Dirs {
		full := c.fullPath(d.Path, suffix)
		if _, err := os.Stat(resolveIndex(full)); err == nil {
			return c.load(full, reqPath)
		}
	}
	return nil, false
}

func resolveIndex(full string) string {
	if strings.HasSuffix(full, "/") {
		return full + "index.html"
	}
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return full + "/index.html"
	}
	return full
}

// Immutable installs content as an immutable page never revalidated against
// disk, matching agoo_page_immutable — used for generated or embedded
// content registered at startup.
func (c *Cache) Immutable(reqPath string, content []byte) *Page {
	mime := c.mimeFor(reqPath)
	body := formatResponse(mime, content)
	page := c.allocPage()
	page.key = reqPath
	page.Path = reqPath
	page.Resp = text.Create(body)
	page.Immutable = true

	c.mu.Lock()
	c.pages[reqPath] = page
	c.mu.Unlock()
	return page
}

func (c *Cache) load(fullPath, key string) (*Page, bool) {
	resolved := resolveIndex(fullPath)
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, false
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, false
	}

	mime := c.mimeFor(resolved)
	body := formatResponse(mime, data)

	page := c.allocPage()
	page.key = key
	page.Path = fullPath
	page.Resp = text.Create(body)
	page.ModTime = info.ModTime()
	page.LastCheck = time.Now()

	c.mu.Lock()
	if old, ok := c.pages[key]; ok {
		c.releasePage(old)
	}
	c.pages[key] = page
	c.mu.Unlock()

	return page, true
}

func (c *Cache) revalidate(page *Page) (*Page, bool) {
	if page.Immutable {
		return page, true
	}
	now := time.Now()
	if now.Sub(page.LastCheck) < recheckInterval {
		return page, true
	}
	info, err := os.Stat(resolveIndex(page.Path))
	if err != nil {
		c.evict(page.key)
		return nil, false
	}
	if !info.ModTime().Equal(page.ModTime) {
		return c.load(page.Path, page.key)
	}
	page.LastCheck = now
	return page, true
}

func (c *Cache) evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page, ok := c.pages[key]; ok {
		delete(c.pages, key)
		c.releasePage(page)
	}
}

// allocPage pulls a recycled Page off the free list, or allocates a fresh
// one when the list is empty.
func (c *Cache) allocPage() *Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.free.Length() > 0 {
		p := c.free.Remove().(*Page)
		p.reset()
		return p
	}
	return &Page{}
}

// releasePage releases the Page's Text and returns the struct to the free
// list for reuse by the next load. Callers must hold c.mu.
func (c *Cache) releasePage(p *Page) {
	if p.Resp != nil {
		p.Resp.Release()
	}
	c.free.Add(p)
}

func formatResponse(mime string, content []byte) []byte {
	return []byte(fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n%s",
		mime, len(content), content))
}

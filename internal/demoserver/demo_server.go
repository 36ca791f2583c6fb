package demoserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
)

var controlPanel = template.Must(template.New("control").Parse(controlPanelHTML))

// DemoServer serves a small shop site whose pages can be switched between
// inaccessible and repaired versions on the fly.
type DemoServer struct {
	cfg      Config
	pages    map[string]PageDefinition
	versions map[string]int // path -> current version
	mu       sync.RWMutex
	logger   logging.Logger
}

// NewDemoServer creates a new demo server instance.
func NewDemoServer(cfg Config) *DemoServer {
	if cfg.InitialVersion < 1 {
		cfg.InitialVersion = 1
	}
	pageMap := make(map[string]PageDefinition)
	versions := make(map[string]int)

	for _, p := range GetAllPages() {
		pageMap[p.Path] = p
		versions[p.Path] = cfg.InitialVersion
	}

	return &DemoServer{
		cfg:      cfg,
		pages:    pageMap,
		versions: versions,
		logger:   logging.OrNop(cfg.Logger).With(logging.F("component", "demoserver")),
	}
}

// Handler returns the demo site's routes.
func (s *DemoServer) Handler() http.Handler {
	mux := http.NewServeMux()

	for path := range s.pages {
		pattern := "GET " + path
		if path == "/" {
			pattern = "GET /{$}"
		}
		mux.HandleFunc(pattern, s.pageHandler(path))
	}

	mux.HandleFunc("GET /robots.txt", s.robotsHandler)
	mux.HandleFunc("GET /sitemap.xml", s.sitemapHandler)

	// Control panel for version switching
	mux.HandleFunc("GET /demo/control", s.controlPanelHandler)
	mux.HandleFunc("/demo/set-version", s.setVersionHandler)
	mux.HandleFunc("GET /demo/get-versions", s.getVersionsHandler)
	mux.HandleFunc("/demo/bump-all", s.bumpAllVersionsHandler)
	mux.HandleFunc("/demo/reset", s.resetVersionsHandler)

	mux.HandleFunc("GET /static/", s.staticHandler)
	return mux
}

// Start serves until ctx is cancelled.
func (s *DemoServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("demo server listening",
		logging.F("url", "http://localhost"+addr),
		logging.F("control_panel", "http://localhost"+addr+"/demo/control"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// versionFor picks the requested version or the closest lower one.
func versionFor(def PageDefinition, version int) PageVersion {
	for v := version; v >= 1; v-- {
		if pv, ok := def.Versions[v]; ok {
			return pv
		}
	}
	return def.Versions[1]
}

func maxVersion(def PageDefinition) int {
	maxV := 1
	for v := range def.Versions {
		maxV = max(maxV, v)
	}
	return maxV
}

func (s *DemoServer) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		pageDef, ok := s.pages[path]
		version := s.versions[path]
		s.mu.RUnlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		pageVersion := versionFor(pageDef, version)

		for k, v := range pageVersion.Headers {
			w.Header().Set(k, v)
		}
		contentType := pageVersion.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pageVersion.HTML))
	}
}

func (s *DemoServer) robotsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "User-agent: *\nDisallow: /private/\nDisallow: /demo/\n\nSitemap: %s/sitemap.xml\n", origin(r))
}

func (s *DemoServer) sitemapHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	paths := make([]string, 0, len(s.pages))
	for path, def := range s.pages {
		if def.InSitemap {
			paths = append(paths, path)
		}
	}
	s.mu.RUnlock()
	slices.Sort(paths)

	base := origin(r)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, p := range paths {
		fmt.Fprintf(&b, "  <url><loc>%s%s</loc></url>\n", base, template.HTMLEscapeString(p))
	}
	b.WriteString("</urlset>\n")

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(b.String()))
}

func origin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// 1x1 transparent PNG.
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// staticHandler serves placeholder assets.
func (s *DemoServer) staticHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, ".js") {
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(`console.log("Loaded: ` + r.URL.Path + `");` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(pixelPNG)
}

func (s *DemoServer) controlPanelHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	problems := make(map[string][]string, len(s.pages))
	for path, def := range s.pages {
		problems[path] = versionFor(def, s.versions[path]).Problems
	}
	data := struct {
		Pages    map[string]PageDefinition
		Versions map[string]int
		Problems map[string][]string
	}{
		Pages:    s.pages,
		Versions: s.versions,
		Problems: problems,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := controlPanel.Execute(w, data); err != nil {
		s.logger.Warn("rendering control panel", logging.Err(err))
	}
}

func (s *DemoServer) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.FormValue("path")
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil || version < 1 {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	def, ok := s.pages[path]
	if ok {
		version = min(version, maxVersion(def))
		s.versions[path] = version
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "Unknown page", http.StatusNotFound)
		return
	}
	s.logger.Info("page version changed", logging.F("path", path), logging.F("version", version))
	writeJSON(w, map[string]any{
		"success": true,
		"path":    path,
		"version": version,
	})
}

// PageInfo describes a page and its current version.
type PageInfo struct {
	Path              string   `json:"path"`
	Description       string   `json:"description"`
	CurrentVersion    int      `json:"current_version"`
	AvailableVersions []int    `json:"available_versions"`
	Problems          []string `json:"problems"`
}

func (s *DemoServer) getVersionsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	pages := make([]PageInfo, 0, len(s.pages))
	for path, def := range s.pages {
		versions := make([]int, 0, len(def.Versions))
		for v := range def.Versions {
			versions = append(versions, v)
		}
		slices.Sort(versions)
		pages = append(pages, PageInfo{
			Path:              path,
			Description:       def.Description,
			CurrentVersion:    s.versions[path],
			AvailableVersions: versions,
			Problems:          versionFor(def, s.versions[path]).Problems,
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(pages, func(a, b PageInfo) int { return strings.Compare(a.Path, b.Path) })
	writeJSON(w, pages)
}

// bumpAllVersionsHandler moves every page one version forward, capped at
// its latest version.
func (s *DemoServer) bumpAllVersionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = min(s.versions[path]+1, maxVersion(s.pages[path]))
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"success": true,
		"message": "All versions bumped",
	})
}

func (s *DemoServer) resetVersionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = 1
	}
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"success": true,
		"message": "All versions reset to 1",
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

const controlPanelHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Demo Server Control Panel</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; max-width: 1200px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        h1 { color: #333; border-bottom: 2px solid #007bff; padding-bottom: 10px; }
        .page-card { background: white; border-radius: 8px; padding: 20px; margin: 15px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .page-header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 10px; }
        .page-path { font-size: 1.2em; font-weight: bold; color: #007bff; text-decoration: none; }
        .page-path:hover { text-decoration: underline; }
        .page-desc { color: #666; margin: 5px 0; }
        .version-controls { display: flex; gap: 10px; align-items: center; margin-top: 10px; }
        .version-btn { padding: 8px 16px; border: none; border-radius: 4px; cursor: pointer; font-size: 14px; }
        .version-btn:hover { opacity: 0.9; }
        .version-btn.active { background: #007bff; color: white; }
        .version-btn.inactive { background: #e9ecef; color: #333; }
        .current-version { font-weight: bold; color: #28a745; }
        .global-controls { background: #fff3cd; padding: 20px; border-radius: 8px; margin-bottom: 20px; }
        .global-controls h2 { margin-top: 0; color: #856404; }
        .global-btn { padding: 10px 20px; margin-right: 10px; border: none; border-radius: 4px; cursor: pointer; font-size: 14px; }
        .bump-btn { background: #28a745; color: white; }
        .reset-btn { background: #dc3545; color: white; }
        .status { margin-top: 10px; padding: 10px; border-radius: 4px; display: none; }
        .status.success { background: #d4edda; color: #155724; display: block; }
        .status.error { background: #f8d7da; color: #721c24; display: block; }
        .info-box { background: #e7f3ff; padding: 15px; border-radius: 8px; margin-bottom: 20px; border-left: 4px solid #007bff; }
    </style>
</head>
<body>
    <h1>Demo Server Control Panel</h1>
    
    <div class="info-box">
        <strong>How to use:</strong> Change page versions to simulate website updates. 
        Scan the site before and after switching to see issues disappear from the report and the score improve.
    </div>
    
    <div class="global-controls">
        <h2>Global Controls</h2>
        <button class="global-btn bump-btn" onclick="bumpAllVersions()">Bump All Versions</button>
        <button class="global-btn reset-btn" onclick="resetAllVersions()">Reset All to v1</button>
        <div id="global-status" class="status"></div>
    </div>
    
    <h2>Pages</h2>
    {{range $path, $page := .Pages}}
    <div class="page-card">
        <div class="page-header">
            <a href="{{$path}}" target="_blank" class="page-path">{{$path}}</a>
            <span class="current-version">Current: v{{index $.Versions $path}}</span>
        </div>
        <div class="page-desc">{{$page.Description}}</div>
        {{with index $.Problems $path}}<div class="page-desc">Known problems: {{range $i, $p := .}}{{if $i}}, {{end}}<code>{{$p}}</code>{{end}}</div>{{end}}
        <div class="version-controls">
            <span>Set version:</span>
            {{range $v, $_ := $page.Versions}}
            <button class="version-btn {{if eq (index $.Versions $path) $v}}active{{else}}inactive{{end}}" 
                    onclick="setVersion('{{$path}}', {{$v}}, this)">
                v{{$v}}
            </button>
            {{end}}
        </div>
    </div>
    {{end}}
    
    <script>
        function setVersion(path, version, btn) {
            fetch('/demo/set-version', {
                method: 'POST',
                headers: {'Content-Type': 'application/x-www-form-urlencoded'},
                body: 'path=' + encodeURIComponent(path) + '&version=' + version
            })
            .then(r => r.json())
            .then(data => {
                if (data.success) {
                    // Update button states
                    const card = btn.closest('.page-card');
                    card.querySelectorAll('.version-btn').forEach(b => {
                        b.classList.remove('active');
                        b.classList.add('inactive');
                    });
                    btn.classList.remove('inactive');
                    btn.classList.add('active');
                    card.querySelector('.current-version').textContent = 'Current: v' + version;
                }
            });
        }
        
        function bumpAllVersions() {
            fetch('/demo/bump-all', {method: 'POST'})
            .then(r => r.json())
            .then(data => {
                showGlobalStatus(data.success, data.message);
                if (data.success) location.reload();
            });
        }
        
        function resetAllVersions() {
            fetch('/demo/reset', {method: 'POST'})
            .then(r => r.json())
            .then(data => {
                showGlobalStatus(data.success, data.message);
                if (data.success) location.reload();
            });
        }
        
        function showGlobalStatus(success, message) {
            const el = document.getElementById('global-status');
            el.textContent = message;
            el.className = 'status ' + (success ? 'success' : 'error');
        }
    </script>
</body>
</html>`

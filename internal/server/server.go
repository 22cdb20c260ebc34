package server

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/rs/cors"

	"github.com/pavel-fokin/doc-utils/internal/documents"
	"github.com/pavel-fokin/doc-utils/internal/minio"
)

type Config struct {
	Addr          string        `env:"DOC_UTILS_ADDR" envDefault:":8000"`
	DataDir       string        `env:"DOC_UTILS_DATA_DIR" envDefault:"uploads"`
	DBPath        string        `env:"DOC_UTILS_DB_PATH" envDefault:"doc-utils.db"`
	MaxSize       int64         `env:"DOC_UTILS_MAX_SIZE" envDefault:"52428800"`
	MaxFiles      int           `env:"DOC_UTILS_MAX_FILES" envDefault:"20"`
	AllowedOrigin string        `env:"DOC_UTILS_ALLOWED_ORIGIN" envDefault:"http://localhost:5173"`
	OCRLanguage   string        `env:"DOC_UTILS_OCR_LANGUAGE" envDefault:"eng"`
	TTL           time.Duration `env:"DOC_UTILS_TTL" envDefault:"1h"`
	SweepInterval time.Duration `env:"DOC_UTILS_SWEEP_INTERVAL" envDefault:"5m"`
	SplitWorkers  int           `env:"DOC_UTILS_SPLIT_WORKERS" envDefault:"4"`
	ReadTimeout   time.Duration `env:"DOC_UTILS_READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout  time.Duration `env:"DOC_UTILS_WRITE_TIMEOUT" envDefault:"120s"`
	LogLevel      slog.Level    `env:"DOC_UTILS_LOG_LEVEL" envDefault:"info"`

	MinIO minio.Config `envPrefix:"DOC_UTILS_MINIO_"`
}

// requestLimit bounds a whole multipart body: every allowed part at the
// ceiling plus room for headers and form fields
func (cfg *Config) requestLimit() int64 {
	files := int64(max(cfg.MaxFiles, 1))
	return cfg.MaxSize*files + 1<<20
}

func New(cfg *Config, svc *documents.Service) *http.Server {
	// Initialize structured logger with JSON handler
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health)
	mux.HandleFunc("POST /upload", recognizeImage(cfg, svc))
	mux.HandleFunc("POST /api/merge-pdfs", mergePDFs(cfg, svc))
	mux.HandleFunc("POST /api/split-pdf", splitPDF(cfg, svc))
	mux.HandleFunc("GET /api/merged-pdfs", listMerged(svc))
	mux.HandleFunc("GET /download", download(svc))
	mux.HandleFunc("GET /uploads/{name}", downloadByName(svc))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	})

	// Wrap the handler with logging, recovery, CORS and body limit middleware
	handler := loggingMiddleware(recoverer(c.Handler(limitBody(mux, cfg.requestLimit()))))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Review dashboard
	mux.HandleFunc("/", s.app.PageHandler.ServePage("dashboard.html", "dashboard"))

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Workflow
	mux.HandleFunc("/api/workflow/command", s.app.WorkflowHandler.CommandHandler)  // POST - process a command
	mux.HandleFunc("/api/workflow/session", s.app.WorkflowHandler.CreateSessionHandler)
	mux.HandleFunc("/api/workflow/sessions", s.app.WorkflowHandler.ListSessionsHandler)
	mux.HandleFunc("/api/workflow/session/", s.app.WorkflowHandler.SessionHandler) // GET/DELETE /{id}

	// API routes - Email pipeline
	mux.HandleFunc("/api/email/process", s.app.EmailHandler.ProcessHandler) // POST - read + stage a draft
	mux.HandleFunc("/api/email/list", s.app.EmailHandler.ListInboxHandler)
	mux.HandleFunc("/api/email/drafts", s.app.EmailHandler.ListDraftsHandler)
	mux.HandleFunc("/api/email/draft/", s.app.EmailHandler.DraftHandler) // GET /{id}, POST /{id}/submit, /{id}/discard

	// API routes - Browser (CRM automation)
	mux.HandleFunc("/api/browser/login", s.app.BrowserHandler.LoginHandler)
	mux.HandleFunc("/api/browser/navigate/inbox", s.app.BrowserHandler.NavigateInboxHandler)
	mux.HandleFunc("/api/browser/status/", s.app.BrowserHandler.StatusHandler)
	mux.HandleFunc("/api/browser/screenshot/", s.app.BrowserHandler.ScreenshotHandler)
	mux.HandleFunc("/api/browser/session/", s.app.BrowserHandler.CloseSessionHandler)
	mux.HandleFunc("/api/browser/credentials", s.app.BrowserHandler.CredentialsHandler) // GET (list), POST (create)
	mux.HandleFunc("/api/browser/credentials/", s.app.BrowserHandler.CredentialHandler) // GET/DELETE /{id}

	// API routes - Voice
	mux.HandleFunc("/api/voice/process", s.app.VoiceHandler.ProcessHandler) // POST - transcript as command
	mux.HandleFunc("/api/voice/wake-word/detect", s.app.VoiceHandler.WakeWordHandler)
	mux.HandleFunc("/api/voice/status", s.app.VoiceHandler.StatusHandler)
	mux.HandleFunc("/api/voice/speak", s.app.VoiceHandler.SpeakHandler)

	// API routes - Knowledge corpus
	mux.HandleFunc("/api/knowledge/articles", s.app.KnowledgeHandler.ArticlesHandler) // GET (list), POST (save)
	mux.HandleFunc("/api/knowledge/article/", s.app.KnowledgeHandler.ArticleHandler)  // GET/DELETE /{id}
	mux.HandleFunc("/api/knowledge/search", s.app.KnowledgeHandler.SearchHandler)

	// API routes - Mail transports
	mux.HandleFunc("/api/mail/smtp", s.app.MailHandler.SMTPConfigHandler)
	mux.HandleFunc("/api/mail/imap", s.app.MailHandler.IMAPConfigHandler)
	mux.HandleFunc("/api/mail/test", s.app.MailHandler.TestEmailHandler)

	// API routes - Settings (key/value store)
	mux.HandleFunc("/api/kv", s.app.KVHandler.ListKVHandler)
	mux.HandleFunc("/api/kv/", s.app.KVHandler.PairHandler) // GET/PUT/DELETE /{key}

	// API routes - Scheduler
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.JobsHandler)
	mux.HandleFunc("/api/scheduler/jobs/", s.handleSchedulerRoutes) // POST /{name}/run

	// API routes - Metrics
	mux.HandleFunc("/api/metrics", s.app.MetricsHandler.AllMetricsHandler)
	mux.HandleFunc("/api/metrics/", s.app.MetricsHandler.ServiceMetricsHandler)
	mux.HandleFunc("/api/status", s.app.MetricsHandler.StatusHandler)

	// API routes - Logs
	mux.HandleFunc("/api/logs/recent", s.app.WSHandler.GetRecentLogsHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleSchedulerRoutes routes /api/scheduler/jobs/{name}/run
func (s *Server) handleSchedulerRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/run") {
		s.app.SchedulerHandler.RunJobHandler(w, r)
		return
	}
	s.app.APIHandler.NotFoundHandler(w, r)
}

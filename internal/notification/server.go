package notification

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/carebridge/notify/pkg/middleware"
)

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// svc は通知のビジネスロジック層。
	svc *Service
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーションを行う。
// notifierがnilの場合、リアルタイム配信は行われず永続化のみになる。
func NewServer(port string, notifier Notifier) (*Server, error) {
	dbPath := getEnvOr("NOTIFICATION_DB_PATH", "/data/notification.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", dbPath)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	store, err := NewStore(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))

	s := &Server{
		router: router,
		port:   port,
		svc:    NewService(store, notifier),
		db:     sqlDB,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Service は通知のビジネスロジック層を返す。
// WebSocketゲートウェイなど、サーバー外のコンポーネントから通知操作を行うために使用する。
func (s *Server) Service() *Service {
	return s.svc
}

// MountWebSocket はWebSocket接続のハンドラをルーターに登録する。
// JWT検証はハンドラ側がハンドシェイク時に行うため、認証ミドルウェアは通さない。
func (s *Server) MountWebSocket(handler gin.HandlerFunc) {
	s.router.GET("/ws/notifications", handler)
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	jwtSecret := getEnvOr("JWT_SECRET", "dev-secret-key")

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(jwtSecret))
	{
		notifications := api.Group("/notifications")
		{
			// 自分の通知一覧取得
			notifications.GET("", s.handleList())
			// 未読件数取得
			notifications.GET("/unread-count", s.handleUnreadCount())
			// 通知設定取得
			notifications.GET("/preferences", s.handleGetPreferences())
			// 通知設定更新
			notifications.PATCH("/preferences", s.handleUpdatePreferences())
			// 既読化
			notifications.PATCH("/:id/read", s.handleMarkRead())
			// 全件既読化
			notifications.PATCH("/mark-all-read", s.handleMarkAllRead())
			// 通知削除
			notifications.DELETE("/:id", s.handleDelete())
			// 全件削除
			notifications.DELETE("", s.handleClearAll())
		}

		// 他サービスから通知を生成する内部エンドポイント
		internal := api.Group("/internal")
		{
			internal.POST("/notifications", s.handleCreate())
		}

		admin := api.Group("/admin/notifications")
		admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		{
			// 通知の統計情報取得
			admin.GET("/stats", s.handleStats())
			// 既読かつ古い通知の一括削除
			admin.POST("/cleanup", s.handleCleanup())
			// システムアナウンスの一括送信
			admin.POST("/announce", s.handleAnnounce())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	})
}

// handleList はユーザーの通知一覧取得を処理するハンドラを返す。
// page・limit・unread・typeクエリパラメータで絞り込みとページネーションを行う。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		opts := ListOptions{
			Page:       parseIntOr(c.Query("page"), 0),
			Limit:      parseIntOr(c.Query("limit"), 0),
			UnreadOnly: c.Query("unread") == "true",
			Type:       Type(c.Query("type")),
		}
		if opts.Type != "" && !opts.Type.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "通知タイプが不正です"})
			return
		}

		result, err := s.svc.ListForUser(c.Request.Context(), userID, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// handleUnreadCount は未読件数取得を処理するハンドラを返す。
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		count, err := s.svc.UnreadCount(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読件数の取得に失敗しました"})
			log.Printf("未読件数取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"unreadCount": count})
	}
}

// handleMarkRead は通知の既読化を処理するハンドラを返す。
// 既に既読の場合も200を返す。他人の通知と存在しない通知は区別せず404を返す。
func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		n, err := s.svc.MarkRead(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読化に失敗しました"})
			log.Printf("通知既読化エラー: %v", err)
			return
		}
		if n == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}

		c.JSON(http.StatusOK, n)
	}
}

// handleMarkAllRead はユーザーの全通知の既読化を処理するハンドラを返す。
func (s *Server) handleMarkAllRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		updated, err := s.svc.MarkAllRead(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の一括既読化に失敗しました"})
			log.Printf("通知一括既読化エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"updated": updated})
	}
}

// handleDelete は通知の削除を処理するハンドラを返す。
// 他人の通知と存在しない通知は区別せず404を返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		deleted, err := s.svc.Delete(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の削除に失敗しました"})
			log.Printf("通知削除エラー: %v", err)
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を削除しました"})
	}
}

// handleClearAll はユーザーの全通知の削除を処理するハンドラを返す。
func (s *Server) handleClearAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		deleted, err := s.svc.DeleteAllForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の一括削除に失敗しました"})
			log.Printf("通知一括削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}

// handleGetPreferences は通知設定の取得を処理するハンドラを返す。
// ユーザーごとの設定は未実装のため、常にデフォルト値を返す。
func (s *Server) handleGetPreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, DefaultPreferences())
	}
}

// handleUpdatePreferences は通知設定の更新を処理するハンドラを返す。
// ユーザーごとの設定は未実装のため、受け取った内容をそのまま返す。
func (s *Server) handleUpdatePreferences() gin.HandlerFunc {
	return func(c *gin.Context) {
		prefs := DefaultPreferences()
		if err := c.ShouldBindJSON(&prefs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		c.JSON(http.StatusOK, prefs)
	}
}

// handleCreate は他サービスからの通知生成を処理するハンドラを返す。
// 生成に成功するとリアルタイム配信も試みるが、配信結果はレスポンスに影響しない。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var params CreateParams
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		n, err := s.svc.Create(c.Request.Context(), params)
		if err != nil {
			if isValidationError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			log.Printf("通知作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, n)
	}
}

// handleStats は通知全体の統計情報取得を処理するハンドラを返す。
func (s *Server) handleStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := s.svc.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "統計情報の取得に失敗しました"})
			log.Printf("統計情報取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

// cleanupRequest は古い通知の一括削除リクエストのJSON構造。
type cleanupRequest struct {
	// DaysOld は保持日数。これより古い既読通知が削除される。未指定の場合は30日。
	DaysOld int `json:"days_old"`
}

// handleCleanup は既読かつ古い通知の一括削除を処理するハンドラを返す。
func (s *Server) handleCleanup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cleanupRequest
		// ボディは省略可能
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
				return
			}
		}

		deleted, err := s.svc.CleanupOld(c.Request.Context(), req.DaysOld)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "古い通知の削除に失敗しました"})
			log.Printf("古い通知削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}

// announceRequest はシステムアナウンス送信リクエストのJSON構造。
type announceRequest struct {
	// UserIDs は送信先のユーザーID一覧。
	UserIDs []string `json:"user_ids" binding:"required"`
	// Title はアナウンスのタイトル。
	Title string `json:"title" binding:"required"`
	// Message はアナウンスの本文。
	Message string `json:"message" binding:"required"`
	// ActionURL はクライアントの遷移先のヒント（任意）。
	ActionURL string `json:"action_url"`
}

// handleAnnounce はシステムアナウンスの一括送信を処理するハンドラを返す。
func (s *Server) handleAnnounce() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req announceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		created, err := s.svc.NotifySystemAnnouncement(c.Request.Context(), req.UserIDs, req.Title, req.Message, req.ActionURL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "アナウンスの送信に失敗しました"})
			log.Printf("アナウンス送信エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"sent": len(created)})
	}
}

// isValidationError は通知作成の入力エラーかどうかを判定する。
func isValidationError(err error) bool {
	return errors.Is(err, ErrUserIDRequired) ||
		errors.Is(err, ErrTypeRequired) ||
		errors.Is(err, ErrInvalidType) ||
		errors.Is(err, ErrInvalidPriority)
}

// parseIntOr は文字列を整数に変換する。空文字列や不正な値の場合はfallbackを返す。
func parseIntOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

// getEnvOr は環境変数の値を返す。未設定の場合はfallbackを返す。
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

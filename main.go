package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/library-min/TF-Planner-sub000/internal/config"
	"github.com/library-min/TF-Planner-sub000/internal/directory"
	"github.com/library-min/TF-Planner-sub000/internal/handlers"
	"github.com/library-min/TF-Planner-sub000/internal/observability"
	"github.com/library-min/TF-Planner-sub000/internal/rabbitmq"
	"github.com/library-min/TF-Planner-sub000/internal/registry"
	"github.com/library-min/TF-Planner-sub000/internal/relay"
	"github.com/library-min/TF-Planner-sub000/internal/rooms"
	"github.com/library-min/TF-Planner-sub000/internal/session"
	"github.com/library-min/TF-Planner-sub000/internal/telemetry"
	"github.com/library-min/TF-Planner-sub000/internal/ws"
)

const serviceName = "tf-planner-chat"

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName, cfg.OTLPAddr)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	if publisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(publisher)
		defer publisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit.chat", serviceName, cfg.Environment)

	var archive *rooms.PostgresArchive
	if cfg.ArchiveDSN != "" {
		archive, err = rooms.OpenArchive(cfg.ArchiveDSN)
		if err != nil {
			log.Fatalf("failed to open message archive: %v", err)
		}
		defer archive.Close()
	}

	var archiver rooms.Archiver
	var history handlers.HistorySource
	if archive != nil {
		archiver = archive
		history = archive
	}

	roomDir := rooms.NewInMemoryDirectory(archiver)
	reg := registry.New()
	hub := ws.NewHub()
	users := directory.New()
	messageRelay := relay.New(roomDir, reg, hub, hub, users)
	tokens := session.NewTokenManager(cfg.JWTSecret)

	roomHandler := handlers.NewRoomHandler(roomDir, reg, hub, history)
	uploadHandler := handlers.NewUploadHandler(cfg.UploadDir)
	sessionHandler := handlers.NewSessionHandler(tokens, users)
	socketHandler := ws.NewSocketHandler(hub, tokens, reg, roomDir, messageRelay, users)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := session.Middleware(tokens)

	router.POST("/session", sessionHandler.CreateSession)
	router.GET("/users", authMiddleware, sessionHandler.ListUsers)

	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.POST("/rooms/group", authMiddleware, roomHandler.CreateGroupRoom)
	router.POST("/rooms/:room_id/invite", authMiddleware, roomHandler.InviteToRoom)
	router.DELETE("/rooms/:room_id/members/me", authMiddleware, roomHandler.LeaveRoom)
	router.GET("/rooms/:room_id/messages", authMiddleware, roomHandler.GetRoomMessages)

	router.POST("/uploads", authMiddleware, uploadHandler.Upload)
	router.Static("/uploads", cfg.UploadDir)

	router.GET("/ws", socketHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	log.Printf("%s listening on :%s (env=%s, amqp=%s)", serviceName, cfg.Port, cfg.Environment, rabbitmq.PublisherMode(auditPublisher))
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

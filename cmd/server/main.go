// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/internal/handler"
	"github.com/KummariJohnson/boston-api/internal/pipeline"
	"github.com/KummariJohnson/boston-api/internal/repository"
	"github.com/KummariJohnson/boston-api/internal/service"
	"github.com/KummariJohnson/boston-api/pkg/database"
	"github.com/KummariJohnson/boston-api/pkg/kafka"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/gin-gonic/gin"
)

// version 在构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 构建查询管道，只在启动时执行一次
	ctx := context.Background()
	var queryEngine pipeline.QueryEngine
	engine, err := pipeline.NewBuilder(&cfg, pipeline.Dependencies{}).Build(ctx)
	if err != nil {
		log.Error("FATAL ERROR during chatbot initialization", err)
		if cfg.Server.AbortOnInitFailure {
			log.Fatal("启动失败，进程退出", err)
		}
		log.Warnf("服务将以未初始化状态运行，所有聊天请求都会返回错误")
	} else {
		queryEngine = engine
		defer engine.Close()
		log.Info("Chatbot initialization complete")
	}

	// 4. 可选组件：Redis 答案缓存、Kafka 查询事件
	var answerCache repository.AnswerCacheRepository
	if cfg.Redis.Addr != "" {
		rdb, err := database.InitRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warnf("Redis 不可用，禁用答案缓存: %v", err)
		} else {
			defer rdb.Close()
			answerCache = repository.NewAnswerCacheRepository(rdb, time.Duration(cfg.Redis.TTLMinutes)*time.Minute)
		}
	}
	publisher := kafka.NewPublisher(cfg.Kafka)
	defer publisher.Close()

	chatService := service.NewChatService(queryEngine, answerCache, publisher)

	// 5. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(chatService, version)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

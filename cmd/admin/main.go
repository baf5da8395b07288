package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"imagesvoter/backend/config"
	"imagesvoter/backend/internal/dto"
	"imagesvoter/backend/internal/repository"
	"imagesvoter/backend/internal/service"
	"imagesvoter/backend/pkg/database"
	"imagesvoter/backend/pkg/jwt"
	applogger "imagesvoter/backend/pkg/logger"
)

// app 子命令共享的运行环境
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
}

func (a *app) close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

func main() {
	var configPath string
	a := &app{}

	root := &cobra.Command{
		Use:           "imagesvoter-admin",
		Short:         "imagesvoter 运维命令",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := applogger.NewLogger(&cfg.Log)
			if err != nil {
				return fmt.Errorf("初始化日志失败: %w", err)
			}
			db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
			if err != nil {
				return fmt.Errorf("数据库连接失败: %w", err)
			}
			a.cfg, a.logger, a.db = cfg, logger, db
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")

	root.AddCommand(newMigrateCmd(a), newCreateTeacherCmd(a))

	err := root.Execute()
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

// ── migrate ──

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "执行所有未应用的迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return database.RunMigrations(sqlDB, a.logger)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "回滚迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return database.RollbackMigrations(sqlDB, steps, a.logger)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "回滚的版本数")
	cmd.AddCommand(down)

	return cmd
}

// ── create-teacher ──

func newCreateTeacherCmd(a *app) *cobra.Command {
	var req dto.RegisterRequest

	cmd := &cobra.Command{
		Use:   "create-teacher",
		Short: "创建教师账号",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Email == "" || len(req.Password) < 8 {
				return fmt.Errorf("必须提供 --email，且 --password 至少 8 位")
			}

			repo := repository.NewRepository(a.db)
			authSvc := service.NewAuthService(repo, jwt.NewManager(&a.cfg.Auth), nil, a.logger)

			user, err := authSvc.Register(context.Background(), &req)
			if err != nil {
				return err
			}
			fmt.Printf("教师账号已创建: %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "登录邮箱")
	cmd.Flags().StringVar(&req.Name, "name", "", "显示名称")
	cmd.Flags().StringVar(&req.Password, "password", "", "初始密码")

	return cmd
}

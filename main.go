package main

import (
	"encoding/base64"
	"flag"
	"io"
	"os"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/task"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v2"
)

const (
	// .env或环境变量中的MongoDB连接字符串，覆盖配置文件中的输入与输出uri
	mongoURIEnv = "RAILSIM_MONGO_URI"
)

var (
	// 分布式模式syncer地址，如果设置为空则激活独立部署模式
	// 独立部署：不需要syncer，不向其他服务提供受保护的RPC访问
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 模拟任务名，用于服务注册与快照key前缀
	job = flag.String("job", "job0", "the name of the whole simulation task")
	// 本程序监听的gRPC地址
	grpcAddr = flag.String("listen", ":51102", "gRPC listening address")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// .env文件路径，不存在时忽略
	envFile = flag.String("env", ".env", "dotenv file path")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")
	// 日志文件路径，设置后日志同时写入轮转文件
	logFile = flag.String("log.file", "", "log file path (empty means stdout only)")

	log = logrus.WithField("module", "railsim")
)

// setupLog 设置日志格式、级别与输出
func setupLog() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	if *logFile != "" {
		logrus.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}
}

// loadConfig 读取yaml配置，并用环境变量覆盖MongoDB连接字符串
func loadConfig() config.Config {
	var c config.Config
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		log.Panicf("config file load err: %v", err)
	}
	if uri := os.Getenv(mongoURIEnv); uri != "" {
		c.Input.URI = uri
		if c.Output != nil {
			c.Output.URI = uri
		}
	}
	return c
}

func main() {
	flag.Parse()
	setupLog()
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Warnf("load %s: %v", *envFile, err)
	}
	c := loadConfig()
	log.Infof("%+v", c.Control)

	sidecar := syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)
	t, err := task.NewContext(*job, c, nil, sidecar, true)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	if err := t.Run(); err != nil {
		log.Fatalf("simulation aborted: %v", err)
	}
}

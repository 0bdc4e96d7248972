package input

import (
	"context"
	"fmt"
	"os"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v2"
)

// Input 输入数据
// 功能：存储仿真所需的所有输入数据
// 说明：包含线路与时刻表，支持从文件或数据库加载
type Input struct {
	Layout    *Layout
	Timetable *Timetable
}

// Init 下载数据
// 功能：根据配置初始化并加载所有输入数据
// 参数：config-配置对象
// 返回：加载并校验完成的输入数据指针
// 算法说明：
// 1. 数据库连接：如果配置了MongoDB则建立连接
// 2. 线路加载：文件优先，否则从MongoDB读取单个文档
// 3. 时刻表加载：文件优先，否则从MongoDB逐车读取
// 4. 数据校验：线路错误直接panic，列车数据错误则忽略该车并记录
func Init(config config.Config) (res *Input) {
	var client *mongo.Client
	if config.Input.URI != "" {
		client = mongoutil.NewClient(config.Input.URI)
		defer client.Disconnect(context.Background())
	}

	res = &Input{}
	var err error
	if config.Input.Layout.File != "" {
		res.Layout, err = LoadFile[Layout](config.Input.Layout.File)
	} else {
		res.Layout, err = loadLayout(client, config.Input.Layout)
	}
	if err != nil {
		log.Panicf("failed to load layout: %v", err)
	}
	if config.Input.Timetable.File != "" {
		res.Timetable, err = LoadFile[Timetable](config.Input.Timetable.File)
	} else {
		res.Timetable, err = loadTimetable(client, config.Input.Timetable)
	}
	if err != nil {
		log.Panicf("failed to load timetable: %v", err)
	}

	if err := ValidateLayout(res.Layout); err != nil {
		log.Panicf("invalid layout: %v", err)
	}
	res.Timetable.Trains = FilterTrains(res.Layout, res.Timetable.Trains)
	if len(res.Timetable.Trains) == 0 {
		log.Error("no valid trains to simulate")
	}
	log.Infof("Section: %v", len(res.Layout.Sections))
	log.Infof("Platform: %v", len(res.Layout.Platforms))
	log.Infof("Signal: %v", len(res.Layout.Signals))
	log.Infof("Train: %v", len(res.Timetable.Trains))
	return
}

// LoadFile 从yaml文件加载数据
func LoadFile[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var v T
	if err := yaml.UnmarshalStrict(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &v, nil
}

// loadLayout 从MongoDB加载线路（集合中的第一个文档）
func loadLayout(client *mongo.Client, path config.InputPath) (*Layout, error) {
	if client == nil {
		return nil, fmt.Errorf("no mongo uri for %s.%s", path.DB, path.Col)
	}
	coll := client.Database(path.GetDb()).Collection(path.GetColl())
	log.Infof("start fetching from %s.%s", path.DB, path.Col)
	var layout Layout
	if err := coll.FindOne(context.Background(), bson.M{}).Decode(&layout); err != nil {
		return nil, fmt.Errorf("fetch %s.%s: %w", path.DB, path.Col, err)
	}
	log.Infof("finish fetching from %s.%s", path.DB, path.Col)
	return &layout, nil
}

// loadTimetable 从MongoDB加载时刻表（每个文档一趟车，按车次排序）
func loadTimetable(client *mongo.Client, path config.InputPath) (*Timetable, error) {
	if client == nil {
		return nil, fmt.Errorf("no mongo uri for %s.%s", path.DB, path.Col)
	}
	coll := client.Database(path.GetDb()).Collection(path.GetColl())
	log.Infof("start fetching from %s.%s", path.DB, path.Col)
	ctx := context.Background()
	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "number", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("fetch %s.%s: %w", path.DB, path.Col, err)
	}
	var trains []Train
	if err := cursor.All(ctx, &trains); err != nil {
		return nil, fmt.Errorf("decode %s.%s: %w", path.DB, path.Col, err)
	}
	log.Infof("finish fetching from %s.%s", path.DB, path.Col)
	return &Timetable{Trains: trains}, nil
}

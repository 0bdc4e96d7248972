// 列车快照的持久化存储，支持本地bson文件与MongoDB两种后端
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/tsinghua-fib-lab/agentsociety-rail-sim/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound 快照不存在
var ErrNotFound = errors.New("snapshot not found")

// Store 快照存储接口
type Store interface {
	// 保存快照，相同key覆盖
	Save(ctx context.Context, key string, v any) error
	// 读取快照到v，不存在时返回ErrNotFound
	Load(ctx context.Context, key string, v any) error
	// 关闭存储
	Close(ctx context.Context) error
}

// New 根据输出配置创建快照存储
// 功能：Dir非空时使用文件存储，否则使用MongoDB存储
// 返回：存储实例，未配置快照时返回nil
func New(c *config.Output) (Store, error) {
	if c == nil || c.Snapshot == nil {
		return nil, nil
	}
	if c.Snapshot.Dir != "" {
		return NewFileStore(c.Snapshot.Dir)
	}
	if c.URI == "" {
		return nil, fmt.Errorf("snapshot output needs either dir or uri")
	}
	client := mongoutil.NewClient(c.URI)
	return NewMongoStore(client, *c.Snapshot), nil
}

// FileStore 本地文件快照存储，每个key一个bson文件
type FileStore struct {
	dir string
}

// NewFileStore 创建文件存储，目录不存在时自动创建
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".bson")
}

// Save 保存快照
func (s *FileStore) Save(ctx context.Context, key string, v any) error {
	data, err := bson.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", key, err)
	}
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return os.Rename(tmp, s.path(key))
}

// Load 读取快照
func (s *FileStore) Load(ctx context.Context, key string, v any) error {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", key, err)
	}
	if err := bson.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return nil
}

// Close 文件存储无需关闭
func (s *FileStore) Close(ctx context.Context) error {
	return nil
}

// snapshotDoc MongoDB中的快照文档
type snapshotDoc struct {
	ID   string `bson:"_id"`
	Data any    `bson:"data"`
}

// MongoStore MongoDB快照存储，key作为文档_id
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore 创建MongoDB存储
func NewMongoStore(client *mongo.Client, path config.OutputPath) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(path.GetDb()).Collection(path.GetColl()),
	}
}

// Save 保存快照（upsert）
func (s *MongoStore) Save(ctx context.Context, key string, v any) error {
	_, err := s.coll.ReplaceOne(
		ctx,
		bson.M{"_id": key},
		snapshotDoc{ID: key, Data: v},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// Load 读取快照
func (s *MongoStore) Load(ctx context.Context, key string, v any) error {
	var doc struct {
		Data bson.Raw `bson:"data"`
	}
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if err := bson.Unmarshal(doc.Data, v); err != nil {
		return fmt.Errorf("unmarshal snapshot %s: %w", key, err)
	}
	return nil
}

// Close 断开MongoDB连接
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

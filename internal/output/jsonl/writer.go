// Package jsonl 实现异步 JSONL 文件写入，以及订单、通道快照、回合记录三个下游。
// 事件循环只投递记录；JSON 编码与文件 I/O 在后台 goroutine 完成。
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrClosed 写入器已关闭
var ErrClosed = errors.New("writer 已关闭")

// Writer 异步 JSONL 写入器
// 缓冲满时丢弃记录，丢弃数由 Dropped 查询。
type Writer struct {
	path   string
	logger *zap.Logger

	records chan any
	flushes chan chan error
	quit    chan struct{}
	done    chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	dropped atomic.Int64
	written atomic.Int64
	dropLog rate.Sometimes
}

// NewWriter 创建 JSONL 写入器
// 参数 path: 输出文件路径（追加写）
// 参数 bufferSize: 待写记录队列容量
func NewWriter(path string, bufferSize int, logger *zap.Logger) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path:    path,
		logger:  logger.Named("jsonl").With(zap.String("path", path)),
		records: make(chan any, bufferSize),
		flushes: make(chan chan error),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		dropLog: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
	go w.run(f)
	return w, nil
}

// Path 输出文件路径
func (w *Writer) Path() string { return w.path }

// Write 投递一条记录，不阻塞
// 返回: 已关闭时返回 ErrClosed；缓冲满时丢弃记录并返回 nil
func (w *Writer) Write(v any) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	if w.closed.Load() {
		return ErrClosed
	}
	select {
	case w.records <- v:
	default:
		n := w.dropped.Add(1)
		w.dropLog.Do(func() {
			w.logger.Warn("写入缓冲已满，丢弃记录", zap.Int64("dropped", n))
		})
	}
	return nil
}

// Dropped 因缓冲满被丢弃的记录数
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Written 已编码写出的记录数
func (w *Writer) Written() int64 { return w.written.Load() }

// Flush 写出已投递的记录并刷盘缓冲区，阻塞直到完成
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	reply := make(chan error, 1)
	select {
	case w.flushes <- reply:
	case <-w.done:
		return nil
	}
	select {
	case err := <-reply:
		return err
	case <-w.done:
		return nil
	}
}

// Close 写完剩余记录后关闭文件，可重复调用
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		close(w.quit)
	})
	<-w.done
	return w.closeErr
}

func (w *Writer) run(f *os.File) {
	defer close(w.done)

	bw := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(bw)
	put := func(v any) {
		if err := enc.Encode(v); err != nil {
			w.logger.Error("写入记录失败", zap.Error(err))
			return
		}
		w.written.Add(1)
	}
	// drain 写出队列里已有的记录
	drain := func() {
		for {
			select {
			case v := <-w.records:
				put(v)
			default:
				return
			}
		}
	}

	for {
		select {
		case v := <-w.records:
			put(v)
		case reply := <-w.flushes:
			drain()
			reply <- bw.Flush()
		case <-w.quit:
			drain()
			err := bw.Flush()
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			w.closeErr = err
			return
		}
	}
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"stat-arb-engine/internal/core/model"
)

// seedPosition 账户持仓快照中的一条
type seedPosition struct {
	Ticker   string  `yaml:"ticker"`
	Position int64   `yaml:"position"`
	AvgCost  float64 `yaml:"avg_cost"`
}

// loadPositions 读取持仓快照文件（YAML 列表）
func loadPositions(path string) ([]seedPosition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取持仓文件失败: %w", err)
	}
	var out []seedPosition
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("解析持仓文件失败: %w", err)
	}
	for i, p := range out {
		if p.Ticker == "" {
			return nil, fmt.Errorf("持仓文件第 %d 项缺少 ticker", i)
		}
	}
	return out, nil
}

// readCommands 逐行读取 JSON 指令，交给事件循环
// 输入结束或 ctx 取消时关闭通道。
func readCommands(ctx context.Context, r io.Reader, logger *zap.Logger) <-chan model.Command {
	ch := make(chan model.Command, 16)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}
			var cmd model.Command
			if err := json.Unmarshal(line, &cmd); err != nil {
				logger.Warn("指令解析失败", zap.Error(err), zap.ByteString("line", line))
				continue
			}
			select {
			case ch <- cmd:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			logger.Warn("指令输入读取失败", zap.Error(err))
		}
	}()
	return ch
}

// contextsim 将一段对话逐轮写入上下文窗口，打印每轮的压缩结果与最终上下文。
//
// 输入为 TSV，每行一轮：用户消息<TAB>咨询师回复[<TAB>情绪强度[<TAB>关键词,关键词]]。
// 未提供情绪强度或关键词时，使用启发式分析补全。
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-counsel/backend/internal/analysis/crisis"
	analysis "github.com/zhouzirui/z-counsel/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-counsel/backend/internal/analysis/keywords"
	"github.com/zhouzirui/z-counsel/backend/internal/config"
	"github.com/zhouzirui/z-counsel/backend/internal/contextwindow"
	"github.com/zhouzirui/z-counsel/backend/internal/logger"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	input := flag.String("in", "", "TSV 输入文件路径，留空则读取标准输入")
	maxTokens := flag.Int("max-tokens", cfg.Context.MaxTokens, "上下文窗口 token 上限")
	reserved := flag.Int("reserved", cfg.Context.ReservedTokens, "系统提示词预留 token")
	protected := flag.Int("protected", cfg.Context.ProtectedTurns, "受保护的最近轮次数")
	summaryMax := flag.Int("summary-max", cfg.Context.SummaryMaxTokens, "摘要 token 上限")
	renderTurns := flag.Int("render", cfg.Context.RenderTurns, "最终渲染的最近轮次数")
	tokenizer := flag.String("tokenizer", string(cfg.Context.Tokenizer), "token 估算方式: chars 或 tiktoken")
	verbose := flag.Bool("v", false, "输出窗口内部日志")

	flag.Parse()

	windowCfg := cfg.Context.WindowConfig()
	windowCfg.MaxTokens = *maxTokens
	windowCfg.ReservedSystemPromptTokens = *reserved
	windowCfg.ProtectedWindowSize = *protected
	windowCfg.SummaryMaxTokens = *summaryMax

	switch config.Tokenizer(*tokenizer) {
	case config.TokenizerChars:
	case config.TokenizerTiktoken:
		est, err := contextwindow.NewTiktokenEstimator(cfg.Context.TiktokenEncoding)
		if err != nil {
			log.Fatalf("tiktoken 初始化失败: %v", err)
		}
		windowCfg.Estimator = est
	default:
		flag.Usage()
		log.Fatalf("未知的 tokenizer: %s", *tokenizer)
	}

	opts := []contextwindow.Option{}
	if *verbose {
		zapLogger, err := logger.New("debug", "console", "stderr")
		if err != nil {
			log.Fatalf("日志初始化失败: %v", err)
		}
		defer func() { _ = zapLogger.Sync() }()
		opts = append(opts, contextwindow.WithLogger(zapLogger))
	} else {
		opts = append(opts, contextwindow.WithLogger(zap.NewNop()))
	}

	window, err := contextwindow.New(windowCfg, opts...)
	if err != nil {
		log.Fatalf("上下文窗口配置无效: %v", err)
	}

	var reader io.Reader = os.Stdin
	if *input != "" {
		file, err := os.Open(*input)
		if err != nil {
			log.Fatalf("打开输入文件失败: %v", err)
		}
		defer file.Close()
		reader = file
	}

	extractor := keywords.New(0, keywords.Lexicon, windowCfg.CrisisKeywords)
	if err := simulate(reader, os.Stdout, window, extractor); err != nil {
		log.Fatalf("模拟失败: %v", err)
	}

	stats := window.Statistics()
	fmt.Printf("\n== 统计 ==\n")
	fmt.Printf("总轮次: %d  活跃: %d  已摘要: %d\n", stats.TotalTurnsSeen, stats.ActiveTurns, stats.SummarizedTurns)
	fmt.Printf("活跃 tokens: %d  摘要 tokens: %d  预留: %d  可用: %d\n",
		stats.ActiveTokens, stats.SummaryTokens, stats.ReservedTokens, stats.AvailableTokens)
	fmt.Printf("利用率: %.2f%%  超预算: %v\n", stats.UtilizationRate, stats.OverBudget)

	fmt.Printf("\n== 上下文（最近 %d 轮）==\n%s\n", *renderTurns, window.FormattedContext(*renderTurns))
}

// simulate 逐行写入窗口并打印每轮结果。
func simulate(r io.Reader, w io.Writer, window *contextwindow.Window, extractor *keywords.Extractor) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintln(w, "seq\ttokens\tsummarized\tover_budget\trisk\tintensity\tkeywords")
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		turn, err := parseLine(raw, extractor)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		risk := crisis.Detect(turn.user)
		out := window.AddTurn(turn.user, turn.response, turn.intensity, turn.keywords)
		fmt.Fprintf(w, "%d\t%d\t%d\t%v\t%s\t%.2f\t%s\n",
			out.Seq, out.Tokens, out.Summarized, out.OverBudget,
			risk.Level, turn.intensity, strings.Join(turn.keywords, ","))
	}
	return scanner.Err()
}

type simTurn struct {
	user      string
	response  string
	intensity float64
	keywords  []string
}

func parseLine(raw string, extractor *keywords.Extractor) (simTurn, error) {
	fields := strings.Split(raw, "\t")
	if len(fields) < 2 {
		return simTurn{}, fmt.Errorf("expected at least 2 tab-separated fields, got %d", len(fields))
	}

	turn := simTurn{user: fields[0], response: fields[1]}

	if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return simTurn{}, fmt.Errorf("invalid intensity %q: %w", fields[2], err)
		}
		turn.intensity = v
	} else {
		turn.intensity = analysis.Analyze(turn.user, turn.response).Intensity()
	}

	if len(fields) > 3 && strings.TrimSpace(fields[3]) != "" {
		for _, kw := range strings.Split(fields[3], ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				turn.keywords = append(turn.keywords, kw)
			}
		}
	} else {
		turn.keywords = extractor.Extract(turn.user)
	}

	return turn, nil
}

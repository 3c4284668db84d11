package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/RecoveryAshes/DCGallStat/internal/storage"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyShow   string
	historyUser   string
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history [galleryID]",
	Short: "查看历史爬取记录",
	Long: `查看 --save 保存的历史报告。

示例:
  dcgallstat history                 # 最近的记录
  dcgallstat history xyz             # 指定画廊
  dcgallstat history --show <id>     # 输出完整报告 (格式由 --format 决定)
  dcgallstat history xyz --user abc  # 用户在历次爬取中的发帖数`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(appConfig.Storage.Path)
		if err != nil {
			return fmt.Errorf("打开历史数据库失败: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		galleryID := ""
		if len(args) == 1 {
			galleryID = args[0]
		}

		switch {
		case historyShow != "":
			return showReport(ctx, store, historyShow)
		case historyUser != "":
			if galleryID == "" {
				return fmt.Errorf("--user 需要指定画廊ID")
			}
			return showUserHistory(ctx, store, galleryID, historyUser)
		default:
			return listHistory(ctx, store, galleryID)
		}
	},
}

func listHistory(ctx context.Context, store *storage.Store, galleryID string) error {
	list, err := store.List(ctx, galleryID, historyLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("没有历史记录")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "画廊", "完成时间", "页数", "帖子", "用户", "日期范围")
	for _, s := range list {
		dates := "-"
		if s.StartDate != "" || s.EndDate != "" {
			dates = s.StartDate + " ~ " + s.EndDate
		}
		_ = table.Append([]string{
			s.ID,
			s.GalleryID,
			s.FinishedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(s.PagesScraped),
			strconv.Itoa(s.TotalPosts),
			strconv.Itoa(s.UniqueUsers),
			dates,
		})
	}
	return table.Render()
}

func showReport(ctx context.Context, store *storage.Store, id string) error {
	r, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	return emitReport(r, historyOutput)
}

func showUserHistory(ctx context.Context, store *storage.Store, galleryID, uid string) error {
	trend, err := store.UserHistory(ctx, galleryID, uid)
	if err != nil {
		return err
	}
	if len(trend) == 0 {
		fmt.Printf("用户 %s 在画廊 %s 中没有记录\n", uid, galleryID)
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("报告ID", "完成时间", "昵称", "帖子数")
	for _, t := range trend {
		_ = table.Append([]string{t.ReportID, t.FinishedAt.Local().Format("2006-01-02 15:04"), t.Nickname, strconv.Itoa(t.Count)})
	}
	return table.Render()
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "显示的记录数")
	historyCmd.Flags().StringVar(&historyShow, "show", "", "输出指定ID的完整报告")
	historyCmd.Flags().StringVar(&historyUser, "user", "", "查看用户的历史发帖数")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "报告输出路径")
	historyCmd.Flags().StringVar(&format, "format", "", "报告格式 (json|markdown|yaml|html|xlsx)")
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "aniload",
		Short: "AniLoad CLI - episode download manager",
		Long:  `A command-line interface for managing episode downloads and the on-device cache.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cacheCmd)

	addCmd.Flags().String("anime", "", "Anime ID (required)")
	addCmd.Flags().String("title", "", "Episode title (required)")
	addCmd.Flags().Int("episode", 0, "Episode number")
	addCmd.Flags().String("audio", "sub", "Audio type: sub or dub")
	addCmd.Flags().String("thumbnail", "", "Thumbnail URL")
	addCmd.MarkFlagRequired("anime")
	addCmd.MarkFlagRequired("title")

	listCmd.Flags().String("status", "", "Filter by status")

	cacheCmd.AddCommand(cacheUsageCmd)
	cacheCmd.AddCommand(cacheCleanupCmd)
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Enqueue an episode download",
	Run: func(cmd *cobra.Command, args []string) {
		animeID, _ := cmd.Flags().GetString("anime")
		title, _ := cmd.Flags().GetString("title")
		episode, _ := cmd.Flags().GetInt("episode")
		audio, _ := cmd.Flags().GetString("audio")
		thumbnail, _ := cmd.Flags().GetString("thumbnail")

		payload := map[string]interface{}{
			"anime_id":       animeID,
			"title":          title,
			"episode_number": episode,
			"audio_type":     audio,
		}
		if thumbnail != "" {
			payload["thumbnail"] = thumbnail
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/items", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Download enqueued!\n")
		fmt.Printf("ID: %s\n", result["id"])
		fmt.Printf("Status: %s\n", result["status"])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all download items",
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")

		url := serverURL + "/api/v1/items"
		if status != "" {
			url += "?status=" + status
		}

		resp, err := http.Get(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var items []map[string]interface{}
		json.Unmarshal(body, &items)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tEP\tAUDIO\tSTATUS\tPROGRESS\tSTORAGE")
		for _, it := range items {
			progress := 0.0
			if p, ok := it["progress"].(float64); ok {
				progress = p * 100
			}
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\t%.0f%%\t%s\n",
				truncate(str(it["id"]), 8),
				truncate(str(it["title"]), 32),
				it["episode_number"],
				str(it["audio_type"]),
				str(it["status"]),
				progress,
				storageLabel(it))
		}
		w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one download item",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/items/" + args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var out bytes.Buffer
		json.Indent(&out, body, "", "  ")
		fmt.Println(out.String())
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/items/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var stats map[string]interface{}
		json.Unmarshal(body, &stats)

		fmt.Println("Download Statistics:")
		fmt.Printf("  Total:        %v\n", stats["total"])
		fmt.Printf("  Pending:      %v\n", stats["pending"])
		fmt.Printf("  Downloading:  %v\n", stats["downloading"])
		fmt.Printf("  Paused:       %v\n", stats["paused"])
		fmt.Printf("  Completed:    %v\n", stats["completed"])
		fmt.Printf("  Failed:       %v\n", stats["failed"])
		fmt.Printf("  Storage used: %v bytes\n", stats["storage_used"])
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "Pause a download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		postAction(args[0], "pause")
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume a paused or failed download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		postAction(args[0], "resume")
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download and discard partial bytes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		postAction(args[0], "cancel")
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Remove a finished download and its file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/items/"+args[0], nil)
		doRequest(req)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all downloads",
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/items", nil)
		doRequest(req)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Drop items whose backing file disappeared",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Post(serverURL+"/api/v1/items/validate", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Removed %v dangling item(s)\n", result["removed"])
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clean the scratch cache",
}

var cacheUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show scratch cache usage",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/cache/usage")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var usage map[string]interface{}
		json.Unmarshal(body, &usage)
		fmt.Printf("Cache: %v bytes across %v file(s)\n", usage["size_bytes"], usage["file_count"])
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run smart cache cleanup",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Post(serverURL+"/api/v1/cache/cleanup", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Cleanup done, usage now: %v\n", result["usage"])
	},
}

// postAction issues an item control action and prints the outcome
func postAction(id, action string) {
	resp, err := http.Post(serverURL+"/api/v1/items/"+id+"/"+action, "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
		os.Exit(1)
	}

	var result map[string]interface{}
	json.Unmarshal(body, &result)
	fmt.Printf("OK: %s\n", result["status"])
}

func doRequest(req *http.Request) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
		os.Exit(1)
	}

	var result map[string]interface{}
	json.Unmarshal(body, &result)
	fmt.Printf("OK: %s\n", result["status"])
}

// storageLabel summarizes where a completed item's content lives
func storageLabel(item map[string]interface{}) string {
	if inGallery, _ := item["is_in_gallery"].(bool); inGallery {
		return "gallery"
	}
	if fp := str(item["file_path"]); fp != "" {
		return "local"
	}
	return "-"
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "…"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/bregydoc/gtranslate"
	"github.com/schollz/progressbar/v3"
)

const version = "1.0.0"

var (
	zhPoPath    string
	enPoPath    string
	targetName  string
	fillMissing bool
	fastMode    bool
	showHelp    bool
	showVer     bool
	interrupted bool
)

func init() {
	flag.StringVar(&zhPoPath, "zh-po", "", "Path to the Chinese PO file (default: Content/Localization/<target>/zh-Hans/<target>.po)")
	flag.StringVar(&enPoPath, "en-po", "", "Path to the English PO file (default: Content/Localization/<target>/en/<target>.po)")
	flag.StringVar(&targetName, "target", "BlueprintProfiler", "Localization target name used to compute default paths")
	flag.BoolVar(&fillMissing, "fill-missing", false, "Machine-translate default texts whose key is missing from the Chinese catalog")
	flag.BoolVar(&fastMode, "fast", false, "Use 0.1 second delay between translations (default: 1 second)")
	flag.BoolVar(&showHelp, "help", false, "Display usage information")
	flag.BoolVar(&showVer, "version", false, "Display version information")
}

func main() {
	flag.Parse()

	if showVer {
		fmt.Printf("loctext2bp version %s\n", version)
		os.Exit(0)
	}

	if showHelp {
		printHelp()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: Please provide a project directory path\n\n")
		printHelp()
		os.Exit(1)
	}

	projectDir := args[0]

	// Verify directory exists
	if info, err := os.Stat(projectDir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: '%s' is not a valid directory\n", projectDir)
		os.Exit(1)
	}

	// Setup signal handling for Ctrl-C
	setupSignalHandler()

	// Get translation delay
	delay := time.Second
	if fastMode {
		delay = 100 * time.Millisecond
	}

	zhFile := resolvePath(projectDir, zhPoPath)
	if zhPoPath == "" {
		zhFile = filepath.Join(projectDir, "Content", "Localization", targetName, "zh-Hans", targetName+".po")
	}
	enFile := resolvePath(projectDir, enPoPath)
	if enPoPath == "" {
		enFile = filepath.Join(projectDir, "Content", "Localization", targetName, "en", targetName+".po")
	}

	// Source files to convert; without extra arguments, the localized
	// widget implementation of the target is converted.
	sourceFiles := make([]string, 0, len(args)-1)
	for _, arg := range args[1:] {
		sourceFiles = append(sourceFiles, resolvePath(projectDir, arg))
	}
	if len(sourceFiles) == 0 {
		sourceFiles = append(sourceFiles, filepath.Join(projectDir, "Source", targetName, "Private", "UI", "S"+targetName+"Widget.cpp"))
	}

	for _, sourceFile := range sourceFiles {
		if _, err := os.Stat(sourceFile); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error: source file '%s' not found\n", sourceFile)
			os.Exit(1)
		}
	}

	fmt.Println("Parsing Chinese translations...")
	chinese, err := parsePoFile(zhFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing Chinese PO file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d Chinese translations\n", len(chinese))

	fmt.Println("Parsing English translations...")
	english, err := parsePoFile(enFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing English PO file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d English translations\n", len(english))

	if fillMissing {
		var missing []macroCall
		seen := make(map[string]bool)
		for _, sourceFile := range sourceFiles {
			content, err := os.ReadFile(sourceFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", sourceFile, err)
				os.Exit(1)
			}
			for _, call := range missingChineseKeys(string(content), chinese) {
				if !seen[call.Key] {
					seen[call.Key] = true
					missing = append(missing, call)
				}
			}
		}

		if len(missing) > 0 {
			fmt.Printf("Translating %d missing string(s)...\n", len(missing))
			translated := fillMissingChinese(chinese, missing, delay)
			fmt.Printf("Translated %d missing string(s)\n", translated)
		}
	}

	fmt.Println("Converting source file...")
	for _, sourceFile := range sourceFiles {
		count, err := convertFile(sourceFile, chinese, english)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error converting %s: %v\n", sourceFile, err)
			os.Exit(1)
		}
		fmt.Printf("Converted %s (%d replacement(s))\n", sourceFile, count)
	}

	if interrupted {
		fmt.Println("\nInterrupted by user: untranslated strings kept their default text")
		os.Exit(130) // Standard exit code for SIGINT
	}

	fmt.Println("Done!")
}

func setupSignalHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		interrupted = true
	}()
}

func printHelp() {
	fmt.Println("loctext2bp - Replace LOCTEXT calls with BP_LOCTEXT using PO catalog translations")
	fmt.Printf("\nUsage: loctext2bp [options] <project-dir> [source-file ...]\n\n")
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println("\nExamples:")
	fmt.Println("  loctext2bp .")
	fmt.Println("  loctext2bp ./MyPlugin Source/MyPlugin/Private/UI/SMyWidget.cpp")
	fmt.Println("  loctext2bp --target MyPlugin ./MyPlugin")
	fmt.Println("  loctext2bp --zh-po ./locales/zh.po --en-po ./locales/en.po . Source/Widget.cpp")
	fmt.Println("  loctext2bp --fill-missing ./MyPlugin")
	fmt.Println("  loctext2bp --fill-missing --fast ./MyPlugin")
}

// resolvePath interprets a relative path against the project directory.
func resolvePath(projectDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectDir, path)
}

// parsePoFile parses a PO file and returns its msgid to msgstr mapping.
// The header entry (empty msgid) is discarded, records without a msgstr
// are skipped, and on duplicate msgids the last record wins.
func parsePoFile(poFile string) (map[string]string, error) {
	file, err := os.Open(poFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries := make(map[string]string)
	var currentMsgid, currentMsgstr string
	var inMsgid, inMsgstr, haveMsgstr bool

	saveEntry := func() {
		if currentMsgid != "" && haveMsgstr {
			entries[currentMsgid] = currentMsgstr
		}
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(trimmed, "msgid ") {
			// Save previous entry
			saveEntry()
			currentMsgid = extractString(trimmed[6:])
			currentMsgstr = ""
			haveMsgstr = false
			inMsgid = true
			inMsgstr = false
		} else if strings.HasPrefix(trimmed, "msgstr ") {
			currentMsgstr = extractString(trimmed[7:])
			haveMsgstr = true
			inMsgid = false
			inMsgstr = true
		} else if strings.HasPrefix(trimmed, "\"") && (inMsgid || inMsgstr) {
			str := extractString(trimmed)
			if inMsgid {
				currentMsgid += str
			} else if inMsgstr {
				currentMsgstr += str
			}
		} else {
			// Comments and blank lines end the current record
			saveEntry()
			currentMsgid = ""
			currentMsgstr = ""
			haveMsgstr = false
			inMsgid = false
			inMsgstr = false
		}
	}

	// Save last entry
	saveEntry()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func extractString(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") {
		s = s[1 : len(s)-1]
	}
	// Handle escape sequences
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\t", "\t")
	s = strings.ReplaceAll(s, "\\\"", "\"")
	return s
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

// Pattern to match LOCTEXT("Key", "DefaultText"); escaped quotes are
// allowed inside both arguments. The three-argument BP_LOCTEXT form
// does not match, so an already converted file passes through unchanged.
var loctextPattern = regexp.MustCompile(`LOCTEXT\("((?:[^"\\]|\\.)+)",\s*"((?:[^"\\]|\\.)+)"\)`)

type macroCall struct {
	Key     string
	Default string
}

// convertContent replaces every LOCTEXT("Key", "DefaultText") occurrence
// with BP_LOCTEXT("Key", "<chinese>", "<english>"), each translation
// falling back to the default text when its catalog lacks the key.
func convertContent(content string, chinese, english map[string]string) (string, int) {
	count := 0
	converted := loctextPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := loctextPattern.FindStringSubmatch(match)
		key := groups[1]
		defaultText := extractString(groups[2])

		chineseText, ok := chinese[key]
		if !ok {
			chineseText = defaultText
		}
		englishText, ok := english[key]
		if !ok {
			englishText = defaultText
		}

		count++
		return fmt.Sprintf("BP_LOCTEXT(\"%s\", \"%s\", \"%s\")", key, escapeString(chineseText), escapeString(englishText))
	})
	return converted, count
}

func convertFile(sourceFile string, chinese, english map[string]string) (int, error) {
	content, err := os.ReadFile(sourceFile)
	if err != nil {
		return 0, err
	}

	converted, count := convertContent(string(content), chinese, english)

	if err := os.WriteFile(sourceFile, []byte(converted), 0644); err != nil {
		return 0, err
	}

	return count, nil
}

// missingChineseKeys collects the macro calls whose key has no entry in
// the Chinese catalog, keeping source order and dropping duplicate keys.
func missingChineseKeys(content string, chinese map[string]string) []macroCall {
	var missing []macroCall
	seen := make(map[string]bool)

	for _, groups := range loctextPattern.FindAllStringSubmatch(content, -1) {
		key := groups[1]
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, exists := chinese[key]; !exists {
			missing = append(missing, macroCall{Key: key, Default: extractString(groups[2])})
		}
	}

	return missing
}

// fillMissingChinese machine-translates the default texts of the given
// calls from English to Chinese and adds the results to the in-memory
// Chinese mapping. Calls that fail to translate keep their default text.
func fillMissingChinese(chinese map[string]string, calls []macroCall, delay time.Duration) int {
	if len(calls) == 0 {
		return 0
	}

	// Create progress bar
	bar := progressbar.NewOptions(len(calls),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]translating[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	translatedCount := 0
	for _, call := range calls {
		if interrupted {
			break
		}

		translated, err := gtranslate.TranslateWithParams(
			call.Default,
			gtranslate.TranslationParams{
				From: "en",
				To:   "zh-CN",
			},
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nWarning: Translation failed for '%s': %v\n", call.Key, err)
			bar.Add(1)
			continue
		}

		chinese[call.Key] = translated
		translatedCount++
		bar.Add(1)

		// Rate limiting
		if !interrupted && translatedCount < len(calls) {
			time.Sleep(delay)
		}
	}

	fmt.Println() // New line after progress bar

	return translatedCount
}

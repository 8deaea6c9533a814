package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

// console 交互输入：优先 readline（持久历史 + 斜杠命令补全），无终端时退回标准输入
// console reads operator input. It prefers readline with persistent
// history and tab completion over the workflow's slash commands, and
// degrades to plain buffered stdin when the line editor cannot start.
type console struct {
	rl    *readline.Instance
	plain *bufio.Reader
	out   io.Writer
}

// newConsole opens the line editor with history persisted at historyPath.
// On failure the returned console still works through the stdin fallback;
// the error only reports why readline was unavailable.
func newConsole(historyPath string) (*console, error) {
	if historyPath != "" {
		if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
			return plainConsole(), fmt.Errorf("create history dir: %w", err)
		}
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyPath,
		HistorySearchFold: true,
		AutoComplete:      commandCompleter(),
	})
	if err != nil {
		return plainConsole(), err
	}
	return &console{rl: rl}, nil
}

func plainConsole() *console {
	return &console{plain: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// commandCompleter derives tab completion from the help table so the two
// cannot drift apart.
func commandCompleter() *readline.PrefixCompleter {
	names := commandNames()
	items := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// commandNames extracts the bare slash commands from the help table.
func commandNames() []string {
	var names []string
	for _, line := range replCommands {
		fields := strings.Fields(line)
		if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
			names = append(names, fields[0])
		}
	}
	return names
}

func (c *console) ReadLine(prompt string) (string, error) {
	if c.rl != nil {
		c.rl.SetPrompt(prompt)
		return c.rl.Readline()
	}
	if c.out != nil {
		fmt.Fprint(c.out, prompt)
	}
	line, err := c.plain.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *console) Close() error {
	if c == nil || c.rl == nil {
		return nil
	}
	return c.rl.Close()
}

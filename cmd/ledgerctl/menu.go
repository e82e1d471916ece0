package main

import (
	"errors"
	"fmt"
	"strings"

	"ledgerctl/internal/config"
	"ledgerctl/internal/logging"
	"ledgerctl/internal/operation"
	"ledgerctl/internal/prompt"
	"ledgerctl/internal/vault"
	"ledgerctl/internal/wallet"
)

const banner = `
  _          _                      _   _
 | | ___  __| | __ _  ___ _ __ ___| |_| |
 | |/ _ \/ _' |/ _' |/ _ \ '__/ __| __| |
 | |  __/ (_| | (_| |  __/ | | (__| |_| |
 |_|\___|\__,_|\__, |\___|_|  \___|\__|_|
               |___/`

// state is a screen of the interactive menu. Each handler returns the
// state to show next, so navigation never recurses.
type state int

const (
	stateMain state = iota
	stateWallets
	stateVault
	stateSplit
	stateClient
	stateQuit
)

type option struct {
	key   string
	label string
}

// menu is the interactive front end over app.
type menu struct {
	a        *app
	handlers map[state]func() state
	loader   *config.Loader
}

func newMenu(a *app) *menu {
	m := &menu{a: a}
	m.handlers = map[state]func() state{
		stateMain:    m.mainScreen,
		stateWallets: m.walletScreen,
		stateVault:   m.vaultScreen,
		stateSplit:   m.splitScreen,
		stateClient:  m.clientScreen,
	}
	return m
}

// Run shows screens until the user quits or input ends.
func (m *menu) Run() {
	m.watchConfig()
	defer m.stopWatch()

	if m.a.created {
		m.a.printf(" Created default configuration at %s\n", m.a.cfgPath)
	}

	for s := stateMain; s != stateQuit; {
		s = m.handlers[s]()
	}
	m.a.printf("\n%s Goodbye.%s\n", prompt.ColorDim, prompt.ColorReset)
}

// watchConfig re-applies operation settings and the log level when the
// config file changes.
func (m *menu) watchConfig() {
	loader := config.NewLoader(m.a.cfgPath)
	loader.OnChange(func(cfg *config.Config) {
		m.a.sess.Apply(cfg)
		if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
			m.a.logger.SetLevel(level)
		}
	})
	if err := loader.Watch(); err != nil {
		m.a.logger.Warn("config hot reload disabled", "error", err)
		return
	}
	go func() {
		for err := range loader.Errors() {
			m.a.logger.Warn("config reload", "error", err)
		}
	}()
	m.loader = loader
}

func (m *menu) stopWatch() {
	if m.loader != nil {
		m.loader.Close()
	}
}

// --- screens ---

func (m *menu) mainScreen() state {
	m.clearScreen()
	m.a.printf("%s%s%s\n", prompt.ColorCyan, banner, prompt.ColorReset)
	m.a.printf("%s  Wallet session manager%s %s%s%s\n\n", prompt.ColorBold, prompt.ColorReset, prompt.ColorDim, Version, prompt.ColorReset)
	m.printStatus()

	choice, ok := m.choose("Main menu", []option{
		{"1", "Balance"},
		{"2", "List coins"},
		{"3", "Transfer a coin"},
		{"4", "Split a coin"},
		{"5", "Merge two coins"},
		{"6", "Merge all coins"},
		{"7", "Wallets"},
		{"8", "Vault"},
		{"9", "Ledger client"},
		{"h", "History"},
		{"q", "Quit"},
	})
	if !ok {
		return stateQuit
	}

	switch choice {
	case "1":
		m.report(m.a.query(operation.KindBalance))
	case "2":
		m.report(m.a.query(operation.KindCoins))
	case "3":
		m.form([]string{"Destination address", "Coin"}, func(v []string) error {
			return m.a.transfer(v[0], v[1])
		})
	case "4":
		return stateSplit
	case "5":
		coins, err := m.a.mergeCoins()
		if err != nil {
			m.report(err)
			break
		}
		m.a.printCoins(coins)
		m.form([]string{"First coin", "Second coin"}, func(v []string) error {
			return m.a.merge(coins, v[0], v[1])
		})
	case "6":
		m.report(m.a.mergeAll())
	case "7":
		return stateWallets
	case "8":
		return stateVault
	case "9":
		return stateClient
	case "h":
		m.report(m.a.history(20))
	case "q", "0":
		return stateQuit
	default:
		m.invalid()
		return stateMain
	}
	m.pause()
	return stateMain
}

func (m *menu) walletScreen() state {
	m.clearScreen()
	m.a.printf("%s Wallets%s\n", prompt.ColorBold, prompt.ColorReset)
	m.report(m.a.listWallets())

	choice, ok := m.choose("Wallets", []option{
		{"1", "Create wallet"},
		{"2", "Switch wallet"},
		{"3", "Delete wallet"},
		{"4", "Import wallet"},
		{"0", "Back"},
	})
	if !ok {
		return stateQuit
	}

	switch choice {
	case "1":
		m.form([]string{"New wallet name"}, func(v []string) error { return m.a.createWallet(v[0]) })
	case "2":
		m.form([]string{"Wallet to activate"}, func(v []string) error { return m.a.switchWallet(v[0]) })
	case "3":
		m.form([]string{"Wallet to delete"}, func(v []string) error { return m.a.deleteWallet(v[0]) })
	case "4":
		m.form([]string{"New wallet name", "Directory with the client .config"}, func(v []string) error {
			return m.a.importWallet(v[0], v[1])
		})
	case "0", "b":
		return stateMain
	default:
		m.invalid()
		return stateWallets
	}
	m.pause()
	return stateWallets
}

func (m *menu) vaultScreen() state {
	m.clearScreen()
	m.a.printf("%s Vault%s\n", prompt.ColorBold, prompt.ColorReset)
	m.report(m.a.vaultStatus())

	choice, ok := m.choose("Vault", []option{
		{"1", "Encrypt wallets"},
		{"2", "Decrypt wallets"},
		{"0", "Back"},
	})
	if !ok {
		return stateQuit
	}

	switch choice {
	case "1":
		m.retry(m.a.encryptVault)
	case "2":
		m.report(m.a.decryptVault())
	case "0", "b":
		return stateMain
	default:
		m.invalid()
		return stateVault
	}
	m.pause()
	return stateVault
}

func (m *menu) splitScreen() state {
	m.clearScreen()
	m.a.printf("%s Split a coin%s\n", prompt.ColorBold, prompt.ColorReset)
	m.a.printf("%s Leave the total empty to use the amount from the coin listing.%s\n", prompt.ColorDim, prompt.ColorReset)

	choice, ok := m.choose("Split mode", []option{
		{"1", "Equal parts"},
		{"2", "Exact amounts"},
		{"3", "Percentages"},
		{"0", "Back"},
	})
	if !ok {
		return stateQuit
	}

	var mode, spec string
	switch choice {
	case "1":
		mode, spec = splitEqual, fmt.Sprintf("Number of parts (%d-%d)", operation.MinParts, operation.MaxParts)
	case "2":
		mode, spec = splitAmounts, "Amounts, comma separated"
	case "3":
		mode, spec = splitPercent, "Percentages, comma separated"
	case "0", "b":
		return stateMain
	default:
		m.invalid()
		return stateSplit
	}

	m.form([]string{"Coin", spec, "Total (optional)"}, func(v []string) error {
		return m.a.split(mode, v[0], v[1], v[2])
	})
	m.pause()
	return stateMain
}

func (m *menu) clientScreen() state {
	m.clearScreen()
	m.a.printf("%s Ledger client%s\n", prompt.ColorBold, prompt.ColorReset)
	m.report(m.a.binaryStatus())

	choice, ok := m.choose("Ledger client", []option{
		{"1", "Check for updates"},
		{"0", "Back"},
	})
	if !ok {
		return stateQuit
	}

	switch choice {
	case "1":
		m.report(m.a.updateBinary())
	case "0", "b":
		return stateMain
	default:
		m.invalid()
		return stateClient
	}
	m.pause()
	return stateClient
}

// --- helpers ---

func (m *menu) printStatus() {
	st := m.a.sess.Status()
	line := prompt.ColorBold + strings.Repeat("─", 45) + prompt.ColorReset

	m.a.printf("%s\n", line)
	vaultColor := prompt.ColorGreen
	if st.Vault == vault.StateEncrypted || st.Vault == vault.StateInconsistent {
		vaultColor = prompt.ColorYellow
	}
	m.a.printf(" Vault:   %s%s%s\n", vaultColor, st.Vault, prompt.ColorReset)

	switch {
	case st.Active != "":
		m.a.printf(" Wallet:  %s (%d total)\n", st.Active, len(st.Wallets))
	case errors.Is(st.ActiveErr, wallet.ErrActiveMissing):
		m.a.printf(" Wallet:  %smissing, switch or recreate it%s\n", prompt.ColorRed, prompt.ColorReset)
	default:
		m.a.printf(" Wallet:  %snone selected%s\n", prompt.ColorDim, prompt.ColorReset)
	}

	if st.Client != nil {
		m.a.printf(" Client:  %s (%s)\n", st.Client.Version, st.Platform)
	} else {
		m.a.printf(" Client:  %snot installed%s (%s)\n", prompt.ColorYellow, prompt.ColorReset, st.Platform)
	}
	m.a.printf("%s\n\n", line)
}

// choose prints options and reads a choice. It returns false when input
// has ended.
func (m *menu) choose(title string, opts []option) (string, bool) {
	for _, o := range opts {
		m.a.printf("  %s[%s]%s %s\n", prompt.ColorCyan, o.key, prompt.ColorReset, o.label)
	}
	m.a.printf("\n")
	answer, err := m.a.in.Ask(title)
	if err != nil {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(answer)), true
}

// form asks for each field and runs action. Input mistakes are reported
// and the form is asked again; an empty answer cancels.
func (m *menu) form(fields []string, action func([]string) error) {
	for {
		values := make([]string, len(fields))
		for i, f := range fields {
			v, err := m.a.in.Ask(f)
			if err != nil {
				return
			}
			if v == "" && !strings.HasSuffix(f, "(optional)") {
				m.a.printf(" Cancelled.\n")
				return
			}
			values[i] = v
		}

		err := action(values)
		if err == nil {
			return
		}
		m.report(err)
		if !isInputError(err) {
			return
		}
	}
}

// retry runs action again while it fails with an input error.
func (m *menu) retry(action func() error) {
	for attempt := 0; attempt < 3; attempt++ {
		err := action()
		m.report(err)
		if err == nil || !isInputError(err) {
			return
		}
	}
}

func isInputError(err error) bool {
	return operation.IsValidation(err) ||
		errors.Is(err, wallet.ErrInvalidName) ||
		errors.Is(err, prompt.ErrPasswordMismatch) ||
		errors.Is(err, prompt.ErrEmptyPassword)
}

func (m *menu) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, operation.ErrNotConfirmed), errors.Is(err, wallet.ErrDeleteAborted):
		m.a.printf(" Cancelled.\n")
	default:
		m.a.logger.Warn("menu action failed", "error", err)
		m.a.failure(err)
	}
}

func (m *menu) invalid() {
	m.a.printf("%s Invalid option.%s\n", prompt.ColorRed, prompt.ColorReset)
	m.pause()
}

func (m *menu) pause() {
	if t, ok := m.a.in.(interface{ WaitForEnter() }); ok {
		t.WaitForEnter()
	}
}

func (m *menu) clearScreen() {
	if _, ok := m.a.in.(*prompt.Terminal); ok {
		m.a.printf("\033[H\033[2J")
	}
}

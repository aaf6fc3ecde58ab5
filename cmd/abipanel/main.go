package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"abipanel/internal/api"
	"abipanel/internal/decoder"
	"abipanel/internal/errors"
	"abipanel/internal/panel"
	"abipanel/internal/shutdown"
	"abipanel/internal/tui"
	"abipanel/internal/units"
	"abipanel/internal/validation"
	"abipanel/internal/view"
)

var (
	configFile string
	verbose    bool
	query      string

	port int

	unitFlag     string
	gasLimitFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "abipanel",
		Short:         "合约交互工具的设置面板",
		Long:          `加载合约ABI、设置合约地址，以及输入单位和Gas上限的设置面板`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "configs/config.yaml", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "详细输出")
	rootCmd.PersistentFlags().StringVar(&query, "query", "", "初始查询串，例如 ?abiUrl=...&address=...")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "启动HTTP设置面板",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&port, "port", 0, "监听端口，覆盖配置")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "启动终端设置面板",
		RunE:  runTUI,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "显示当前设置",
		RunE:  runShow,
	}

	loadCmd := &cobra.Command{
		Use:   "load <url|file>",
		Short: "从URL或本地文件加载ABI",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoad,
	}

	addressCmd := &cobra.Command{
		Use:   "address <addr>",
		Short: "设置合约地址",
		Args:  cobra.ExactArgs(1),
		RunE:  runAddress,
	}

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "查看或修改单位和Gas上限",
		RunE:  runSettings,
	}
	settingsCmd.Flags().StringVar(&unitFlag, "unit", "", "输入单位 (wei, gwei, ether)")
	settingsCmd.Flags().StringVar(&gasLimitFlag, "gas-limit", "", "Gas上限，任意文本")

	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "单位工具",
	}
	convertCmd := &cobra.Command{
		Use:   "convert <amount> <unit>",
		Short: "把金额换算为各单位",
		Args:  cobra.ExactArgs(2),
		RunE:  runConvert,
	}
	unitsCmd.AddCommand(convertCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode <calldata>",
		Short: "按当前ABI解码调用数据",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecode,
	}

	rootCmd.AddCommand(serveCmd, tuiCmd, showCmd, loadCmd, addressCmd, settingsCmd, unitsCmd, decodeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := shutdown.SignalContext(context.Background())
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	if port > 0 {
		a.cfg.Server.Port = port
	}
	server := api.NewServer(a.controller, a.misc, a.logger, a.cfg.Server.Port, a.cfg.Server.MaxLogs)

	timeout, _ := a.cfg.ShutdownTimeout()
	manager := shutdown.NewManager(timeout, a.logger)
	manager.Register("http", shutdown.OrderHTTPServer, server.Stop)
	manager.Register("events", shutdown.OrderPublisher, func(context.Context) error {
		return a.publisher.Close()
	})
	manager.Register("store", shutdown.OrderStore, func(context.Context) error {
		return a.store.Close()
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	return manager.Wait(ctx, serveErr)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, stop := shutdown.SignalContext(context.Background())
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// 终端界面占用标准输出，日志只写入配置的文件
	if a.cfg.Logging.Output == "stdout" || a.cfg.Logging.Output == "stderr" {
		a.logger.SetOutput(io.Discard)
	}

	return tui.Run(ctx, a.controller, a.misc)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	return printState(cmd.OutOrStdout(), a)
}

func printState(w io.Writer, a *app) error {
	page := view.NewPage(a.controller.Snapshot(), a.misc.Settings())
	fmt.Fprintln(w, view.RenderText(page, view.TextInputs{}))

	if page.Summary != nil {
		for _, sig := range page.Summary.Methods {
			fmt.Fprintf(w, "  method %s\n", sig)
		}
		for _, sig := range page.Summary.Events {
			fmt.Fprintf(w, "  event  %s\n", sig)
		}
	}
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	source := args[0]
	if isRemote(source) {
		a.controller.SetAbiURL(source)
		err = a.controller.FetchAbi(cmd.Context(), source)
	} else {
		err = loadFile(a.controller, source)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "已加载ABI: %s\n", a.controller.Snapshot().ABI.Label)
	if loc := a.controller.Snapshot().Location; loc != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "查询串: %s\n", loc)
	}
	return nil
}

func isRemote(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func loadFile(c *panel.Controller, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewFileError(err)
	}
	defer f.Close()

	info, err := f.Stat()
	name := path
	if err == nil {
		name = info.Name()
	}
	return c.LoadFile(name, f)
}

func runAddress(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.controller.UpdateContractAddress(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "合约地址: %s\n", validation.ChecksumAddress(args[0]))
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if cmd.Flags().Changed("unit") {
		if err := a.misc.SetUnit(unitFlag); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("gas-limit") {
		if err := a.misc.SetGasLimit(gasLimitFlag); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(a.misc.Settings(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	unit, err := units.Parse(args[1])
	if err != nil {
		return err
	}
	wei, err := units.ToWei(args[0], unit)
	if err != nil {
		return err
	}

	for _, opt := range units.Options {
		value, err := units.FromWei(wei, opt.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s\n", opt.Label, value)
	}
	return nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	call, err := decoder.NewInputDecoder(a.logger).DecodeInput(a.controller.Snapshot().Contract.ABI, args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(call, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

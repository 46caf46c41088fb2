/*
Package cli provides helpers shared by the cuse commands.

Output formatting supports text, JSON and CSV. Tabular data implements
Table and is aligned in columns for text and written row by row for CSV:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, exchanges); err != nil {
		return err
	}

Signal handling cancels a context on SIGINT or SIGTERM, which is what
stops the proxy and restores the patched library:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Commands return ConfigError for bad configuration and CommandError for
failures while running; ExitCode maps them to process exit codes.
*/
package cli

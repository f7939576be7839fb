// Package commands implementa os comandos CLI do LineClaw usando cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd cria o comando raiz do CLI com todos os subcomandos registrados.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lineclaw",
		Short: "LineClaw - LINE bot backed by Gemini",
		Long: `LineClaw is a LINE messaging bot backed by Google Gemini.
It answers chat messages with per-user conversation memory, understands
images, and pushes a daily activity report to the admin.

Examples:
  lineclaw serve
  lineclaw chat "What can you do?"
  lineclaw report
  lineclaw secret set channel_token`,
		Version: version,
	}

	// Registra subcomandos.
	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newReportCmd(),
		newSecretCmd(),
	)

	// Flags globais.
	rootCmd.PersistentFlags().StringP("config", "c", "", "caminho para o arquivo de configuração")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "habilita logs detalhados")

	return rootCmd
}

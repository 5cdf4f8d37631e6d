package help

const ColdstartYAML = `# site-repair Quick Start

stages:
  paths: "Rewrite legacy and deployment-base references to relative or based local paths"
  inject: "Insert the managed stylesheet and menu script before </head> when absent"
  token: "Set the managed stylesheet's version token (?v=...)"
  patch: "Give testimonial blocks without a portrait a placeholder image"
  recover: "Fetch referenced assets missing on disk from the origin"

commands:
  basic_run: |
    site-repair run --root ./site

  preview: |
    site-repair run --root ./site --dry-run --no-fetch

  deploy_under_base: |
    site-repair run --root ./site --base /FFC-EX-SRRN.net/

  bump_token: |
    site-repair run --root ./site --stages token --token final4

  offline_repair: |
    site-repair run --root ./site --no-fetch --no-ledger

  list_runs: |
    site-repair history list

  run_details: |
    site-repair history show <run-id>

key_files:
  - "site-repair.yaml (config, optional; built-in defaults otherwise)"
  - "results/report-YYYY-MM-DD.yaml (run report)"
  - "site-repair.db next to the binary (run ledger)"

guarantees:
  - "A second run over a repaired corpus changes nothing"
  - "A document is written at most once per run, all-or-nothing"
  - "An asset that exists locally is never fetched"
  - "Documents without an anchor or with ambiguous blocks are flagged, not edited"

error_behavior:
  - "Missing assets that cannot be fetched: listed in the report, references still point at the local path"
  - "Exit codes: 0=clean, 1=assets failed or documents flagged, 2=config or corpus error"
`
